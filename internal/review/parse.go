package review

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"glossary-review/internal/domain"
)

var (
	fencePattern = regexp.MustCompile("```json\\s*|\\s*```")
	listPattern  = regexp.MustCompile(`(?s)\[.*\]`)
)

// ErrUnparseable is returned when a response holds no JSON list.
var ErrUnparseable = errors.New("response is not a JSON list")

// flexBool accepts true/false as booleans or strings.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*b = false
		return nil
	}
	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = flexBool(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("should_delete: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1", "是":
		*b = true
	default:
		*b = false
	}
	return nil
}

// verdict is one model answer before it is matched to a work item.
type verdict struct {
	KoreanTerm             string   `json:"korean_term"`
	Term                   string   `json:"term"`
	OriginalTranslation    string   `json:"original_translation"`
	RecommendedTranslation string   `json:"recommended_translation"`
	ShouldDelete           flexBool `json:"should_delete"`
	DeletionReason         *string  `json:"deletion_reason"`
	JudgmentEmoji          string   `json:"judgment_emoji"`
	Emoji                  string   `json:"emoji"`
	Justification          string   `json:"justification"`
	SuggestedCategory      string   `json:"suggested_category"`
}

func (v verdict) term() string {
	if v.KoreanTerm != "" {
		return strings.TrimSpace(v.KoreanTerm)
	}
	return strings.TrimSpace(v.Term)
}

// ParseResponse extracts the verdict list, tolerating markdown fences and surrounding prose.
func ParseResponse(text string) ([]verdict, error) {
	clean := strings.TrimSpace(fencePattern.ReplaceAllString(text, ""))
	if clean == "" {
		return nil, ErrUnparseable
	}

	var out []verdict
	if err := json.Unmarshal([]byte(clean), &out); err == nil {
		return out, nil
	}

	match := listPattern.FindString(clean)
	if match == "" {
		return nil, ErrUnparseable
	}
	if err := json.Unmarshal([]byte(match), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	return out, nil
}

// Reconcile pairs verdicts with items by term, then by position.
// Items left without a verdict are returned separately.
func Reconcile(items []domain.WorkItem, verdicts []verdict, round int) ([]domain.Judgment, []domain.WorkItem) {
	used := make([]bool, len(verdicts))
	byTerm := make(map[string][]int, len(verdicts))
	for i, v := range verdicts {
		byTerm[v.term()] = append(byTerm[v.term()], i)
	}
	inBatch := make(map[string]struct{}, len(items))
	for _, item := range items {
		inBatch[strings.TrimSpace(item.Term)] = struct{}{}
	}

	judgments := make([]domain.Judgment, 0, len(items))
	var missing []domain.WorkItem
	for pos, item := range items {
		idx := -1
		for _, candidate := range byTerm[strings.TrimSpace(item.Term)] {
			if !used[candidate] {
				idx = candidate
				break
			}
		}
		if idx < 0 && pos < len(verdicts) && !used[pos] {
			if _, named := inBatch[verdicts[pos].term()]; !named {
				idx = pos
			}
		}
		if idx < 0 {
			missing = append(missing, item)
			continue
		}
		used[idx] = true
		judgments = append(judgments, toJudgment(item, verdicts[idx], round))
	}
	return judgments, missing
}

func toJudgment(item domain.WorkItem, v verdict, round int) domain.Judgment {
	emoji := v.JudgmentEmoji
	if emoji == "" {
		emoji = v.Emoji
	}
	recommended := strings.TrimSpace(v.RecommendedTranslation)
	if recommended == "" {
		recommended = strings.TrimSpace(item.OriginalTranslation)
	}
	reason := ""
	if v.DeletionReason != nil {
		reason = strings.TrimSpace(*v.DeletionReason)
	}
	return domain.Judgment{
		Term:                   item.Term,
		OriginalTranslation:    item.OriginalTranslation,
		Round:                  round,
		Emoji:                  emoji,
		RecommendedTranslation: recommended,
		ShouldDelete:           bool(v.ShouldDelete),
		DeletionReason:         reason,
		Justification:          v.Justification,
		OriginalCategory:       item.Category,
		SuggestedCategory:      strings.TrimSpace(v.SuggestedCategory),
	}
}

// FailedJudgment is the terminal verdict for an item no provider could judge.
func FailedJudgment(item domain.WorkItem, round int, err error) domain.Judgment {
	return domain.Judgment{
		Term:                   item.Term,
		OriginalTranslation:    item.OriginalTranslation,
		Round:                  round,
		Emoji:                  domain.ErrorEmoji,
		RecommendedTranslation: item.OriginalTranslation,
		Justification:          err.Error(),
		OriginalCategory:       item.Category,
		Failed:                 true,
	}
}
