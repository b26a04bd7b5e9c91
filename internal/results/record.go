package results

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"glossary-review/internal/domain"
)

// Actions recorded for a judgment.
const (
	ActionDelete = "Delete"
	ActionModify = "Modify"
	ActionKeep   = "Keep"
	ActionError  = "Error"
)

// DeletedMarker replaces the translation of a deleted term.
const DeletedMarker = "(Deleted)"

// Record is one persisted judgment. Older files may use other field names
// or omit optional fields; unknown fields survive a read/write cycle.
type Record struct {
	Term              string `json:"term"`
	Original          string `json:"original"`
	New               string `json:"new"`
	Action            string `json:"action"`
	Reason            string `json:"reason"`
	Justification     string `json:"justification"`
	Emoji             string `json:"emoji"`
	Round             int    `json:"round"`
	OriginalCategory  string `json:"original_category"`
	SuggestedCategory string `json:"suggested_category"`

	Extra map[string]json.RawMessage `json:"-"`
}

// fieldAliases lists accepted names per field, current name first.
var fieldAliases = map[string][]string{
	"term":               {"term", "korean_term"},
	"original":           {"original", "original_translation", "chinese_translation"},
	"new":                {"new", "recommended_translation"},
	"action":             {"action"},
	"reason":             {"reason", "deletion_reason"},
	"justification":      {"justification"},
	"emoji":              {"emoji", "judgment_emoji"},
	"round":              {"round"},
	"original_category":  {"original_category"},
	"suggested_category": {"suggested_category"},
}

// UnmarshalJSON decodes current and legacy layouts.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	take := func(field string) string {
		var found string
		for _, name := range fieldAliases[field] {
			v, ok := raw[name]
			if !ok {
				continue
			}
			delete(raw, name)
			if found == "" {
				found = rawString(v)
			}
		}
		return found
	}

	*r = Record{
		Term:              take("term"),
		Original:          take("original"),
		New:               take("new"),
		Action:            take("action"),
		Reason:            take("reason"),
		Justification:     take("justification"),
		Emoji:             take("emoji"),
		OriginalCategory:  take("original_category"),
		SuggestedCategory: take("suggested_category"),
	}

	r.Round = 1
	if n, err := strconv.Atoi(take("round")); err == nil && n >= 1 {
		r.Round = n
	}

	if v, ok := raw["should_delete"]; ok && r.Action == "" && truthy(v) {
		r.Action = ActionDelete
	}
	if len(raw) > 0 {
		r.Extra = raw
	}
	return nil
}

// MarshalJSON writes the current layout followed by preserved extra fields.
func (r Record) MarshalJSON() ([]byte, error) {
	type plain Record
	known, err := json.Marshal(plain(r))
	if err != nil || len(r.Extra) == 0 {
		return known, err
	}

	keys := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		if _, clash := fieldAliases[k]; !clash {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.Write(known[:len(known)-1])
	for _, k := range keys {
		name, _ := json.Marshal(k)
		buf.WriteByte(',')
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(r.Extra[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// rawString renders strings, numbers and booleans as text; null becomes empty.
func rawString(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	trimmed := strings.TrimSpace(string(v))
	if trimmed == "null" {
		return ""
	}
	return trimmed
}

func truthy(v json.RawMessage) bool {
	switch strings.ToLower(rawString(v)) {
	case "true", "yes", "1", "是":
		return true
	}
	return false
}

// FromJudgment converts a judgment into a record.
func FromJudgment(j domain.Judgment) Record {
	rec := Record{
		Term:              j.Term,
		Original:          j.OriginalTranslation,
		Reason:            j.DeletionReason,
		Justification:     j.Justification,
		Emoji:             j.Emoji,
		Round:             j.Round,
		OriginalCategory:  j.OriginalCategory,
		SuggestedCategory: j.SuggestedCategory,
	}
	if rec.Round < 1 {
		rec.Round = 1
	}

	recommended := strings.TrimSpace(j.RecommendedTranslation)
	current := strings.TrimSpace(j.OriginalTranslation)
	switch {
	case j.Failed:
		rec.Action = ActionError
		rec.New = current
	case j.ShouldDelete:
		rec.Action = ActionDelete
		rec.New = DeletedMarker
	case recommended != "" && recommended != current:
		rec.Action = ActionModify
		rec.New = recommended
	default:
		rec.Action = ActionKeep
		rec.New = current
	}
	return rec
}

// Judgment converts a record back into a judgment.
func (r Record) Judgment() domain.Judgment {
	j := domain.Judgment{
		Term:                   r.Term,
		OriginalTranslation:    r.Original,
		Round:                  r.Round,
		Emoji:                  r.Emoji,
		RecommendedTranslation: r.New,
		DeletionReason:         r.Reason,
		Justification:          r.Justification,
		OriginalCategory:       r.OriginalCategory,
		SuggestedCategory:      r.SuggestedCategory,
	}
	switch {
	case r.Action == ActionError || r.Emoji == domain.ErrorEmoji:
		j.Failed = true
		j.RecommendedTranslation = r.Original
	case r.Action == ActionDelete:
		j.ShouldDelete = true
		j.RecommendedTranslation = ""
	}
	return j
}
