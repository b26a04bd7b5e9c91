package review

import (
	"encoding/json"
	"strings"

	"glossary-review/internal/domain"
)

// Tier weights how strictly a term is judged.
type Tier string

const (
	TierS    Tier = "S"
	TierA    Tier = "A"
	TierB    Tier = "B"
	TierC    Tier = "C"
	TierTest Tier = "B (Test)"
)

var tierInstructions = map[Tier]string{
	TierS:    "【核心设定词】出现在背景设定中。必须严格保持一致，绝对禁止删除。",
	TierA:    "【高频词】出现在原文多次。通常是重要术语，但若是被错误提取的通用常用词（如纯字母、数字、单字、虚词、动词、形容词、副词、介词、连词、助词、感叹词、数词、量词、代词、冠词、语气词等），请务必标记删除。",
	TierB:    "",
	TierC:    "【低频词】仅出现1-3次。若判断为通用词汇（非术语，如纯字母、数字、单字、虚词、动词、形容词、副词、介词、连词、助词、感叹词、数词、量词、代词、冠词、语气词等），请大胆建议删除。",
	TierTest: "【测试模式】请根据提供的上下文和设定进行判定。",
}

var characterKeywords = []string{"角色", "神祇/传说人物", "男性角色", "女性角色"}

// TierOf classifies a term against the background and its frequency.
func TierOf(term string, frequency int, background string) Tier {
	switch {
	case term != "" && strings.Contains(background, term):
		return TierS
	case frequency >= 5:
		return TierA
	case frequency <= 3:
		return TierC
	default:
		return TierB
	}
}

// History maps a term to its judgments from earlier rounds, oldest first.
type History map[string][]domain.Judgment

// Add records judgments so later rounds can see them.
func (h History) Add(judgments ...domain.Judgment) {
	for _, j := range judgments {
		if j.Failed {
			continue
		}
		h[j.Term] = append(h[j.Term], j)
	}
}

// Context returns the memory hint for a term, or nil when it has no history.
func (h History) Context(term string) *string {
	past := h[term]
	if len(past) == 0 {
		return nil
	}
	last := past[len(past)-1]
	hint := "之前已建议删除"
	if !last.ShouldDelete {
		hint = "之前已审定为: " + last.RecommendedTranslation
	}
	return &hint
}

// batchEntry is one term as the model sees it.
type batchEntry struct {
	KoreanTerm         string  `json:"korean_term"`
	ChineseTranslation string  `json:"chinese_translation"`
	Tier               Tier    `json:"tier"`
	Instruction        string  `json:"instruction"`
	HistoryContext     *string `json:"history_context"`
	IsCharacter        bool    `json:"is_character"`
	CurrentCategory    string  `json:"current_category"`
	Context            string  `json:"context"`
}

func newBatchEntry(item domain.WorkItem, tier Tier, history *string) batchEntry {
	category := strings.TrimSpace(item.Category)
	isCharacter := false
	for _, kw := range characterKeywords {
		if strings.Contains(category, kw) {
			isCharacter = true
			break
		}
	}
	return batchEntry{
		KoreanTerm:         strings.TrimSpace(item.Term),
		ChineseTranslation: strings.TrimSpace(item.OriginalTranslation),
		Tier:               tier,
		Instruction:        tierInstructions[tier],
		HistoryContext:     history,
		IsCharacter:        isCharacter,
		CurrentCategory:    category,
		Context:            item.Context,
	}
}

// BuildPrompt renders the reviewer prompt for one batch.
func BuildPrompt(userPrompt, background string, entries []batchEntry) (string, error) {
	payload, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(userPrompt)
	b.WriteString("\n")
	b.WriteString(suffixHead)
	b.WriteString(background)
	b.WriteString(suffixExample)
	b.Write(payload)
	b.WriteString(suffixSchema)
	return b.String(), nil
}

const suffixHead = `
请根据「小说背景设定」、「权重等级」、「历史记忆」与每个术语各自的「术语所在原文参考」，逐条、独立判断下列术语是否存在翻译问题。
权重分级与记忆规则 (Tier & Memory):
你收到的数据中包含了 ` + "`tier`" + ` (S/A/B/C) 和 ` + "`instruction`" + ` 字段，以及可选的 ` + "`history_context`" + `。
1. **记忆优先 (History Priority)**: 如果 ` + "`history_context`" + ` 存在（例如"之前已审定为: XX"），这意味着在之前的校对中已经达成了结论。若无致命错误，请**务必与历史结论保持一致**。
2. **等级策略 (Tier Strategy)**:
    - **Tier S (Lore)**: 绝对权威。必须与设定集严格匹配。
    - **Tier A (High Freq)**: 高频出现。通常为重要名词。但若确认为被错误提取的通用常用词（如单字、连词），**请务必标记删除**。
    - **Tier C (Low Freq)**: 能够容忍删除。如果看起来像普通动词、形容词或无意义短语，**请大胆标记为删除 (should_delete=true)**。
3. **分类审查 (Category Review)**:
    根据术语原文、上下文和小说背景，判断 ` + "`current_category`" + `（现有分类）是否准确，并在 ` + "`suggested_category`" + ` 字段中返回最准确的分类。
    分类体系如下（格式：大类/子类）：
    - ` + "`角色`" + ` → 男性角色 / 女性角色 / 动物角色 / 历史人物 / 知名人物 / 角色外号 / 昵称 / 小说作者
    - ` + "`地点`" + ` → 特定地名 / 通用地名
    - ` + "`组织机构`" + ` → 特定组织 / XX机构
    - ` + "`小说设定`" + ` → ABO / Nameverse / 哨兵向导 / 猎人能力设定 / 特定世界设定词
    - ` + "`能力技能`" + ` → 角色技能 / 特定设定技能
    - ` + "`物品`" + ` → 特定物品 / 通用物品 / 特殊物品
    规则：
    - 若现有分类已准确，将其标准化为大类/子类格式后原样返回
    - 若现有分类不准确或可细化，返回更准确的大类/子类
    - 在 ` + "`justification`" + ` 中同时说明翻译审查和分类审查的理由

小说背景设定:
`

const suffixExample = `

请严格按照我给出的 JSON 格式返回一个包含所有术语审查结果的 JSON 列表。列表的顺序必须与输入列表的顺序完全一致。

下面是一个处理范例：
---
[范例输入]
[
  { "korean_term": "침대 시트", "chinese_translation": "床单", "tier": "C", "instruction": "【低频词】...", "is_character": false, "current_category": "物品", "context": "그는 침대 시트를 갈았다. (他换了床单。)" }
]

[范例输出]
[
  {
    "korean_term": "침대 시트",
    "original_translation": "床单",
    "recommended_translation": "床单",
    "should_delete": true,
    "deletion_reason": "通用词",
    "judgment_emoji": "🗑️",
    "suggested_category": "物品/通用物品",
    "justification": "该术语为通用词（日常词汇），无特殊含义，建议在最终术语表中删除。分类：通用物品。"
  }
]
---

现在，请处理以下术语列表：
`

const suffixSchema = `

输出格式 (Output Format):
[
  {
    "korean_term": "[术语原文]",
    "original_translation": "[原始译文]",
    "recommended_translation": "[你的首选建议]",
    "should_delete": "[true/false]",
    "deletion_reason": "[通用词/动词/形容词/描述性短语/非角色/其他/null]",
    "judgment_emoji": "[✅/⚠️/❌/🗑️]",
    "suggested_category": "[大类/子类，参照上方分类体系]",
    "justification": "[简洁、精确的核心理由，包含翻译审查和分类审查说明]"
  }
]
`
