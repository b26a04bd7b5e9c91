package config

import (
	"os"
	"path/filepath"

	"glossary-review/internal/domain"
)

const (
	DefaultMaxWorkers     = 10
	DefaultBatchSize      = 10
	DefaultConnectTimeout = 120.0
	DefaultBaseURL        = "https://api.deepseek.com/v1"
	DefaultModel          = "deepseek-chat"
)

// DefaultBatchReviewPrompt is the reviewer instruction used when the user has not saved one.
const DefaultBatchReviewPrompt = `角色：专业小说翻译家 (V3 - 批处理模式)

身份与使命:
你是一位顶级的韩中翻译复审专家。你的任务是接收一批术语，并对其中的每一条进行独立的、精确的审查。

核心行为准则:
- 绝对忠于“小说背景设定”和“术语所在原文参考”，这是你判断的最高依据。
- 对于专有名词（人名、地名、组织等），你的首要任务是确保其“一致性”，在没有明显错误的情况下不轻易修改。
- 对于普通词汇，你的任务是“精简”，大胆地删除不必要的通用词、动词和描述性短语，只保留核心名词。

任务：批量术语审查
请根据“小说背景设定”和每个术语各自的“术语所在原文参考”，独立判断列表中的每一个术语是否有翻译问题。
审查标准如下：
1. 是否为多义词？（建议删除）
2. 翻译是否准确？
3. 是否为通用词（即没有歧义的日常词汇，如“床单”、“水壶”）？（建议删除）
4. 是否为形容词、动词或描述性短语？（建议删除）
5. 如果是角色术语，人名、性别、一致性是否正确？如果不是角色，是否应删除？`

// DefaultConfig returns baseline user configuration for first launch.
func DefaultConfig() domain.Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Config{
		MaxWorkers:       DefaultMaxWorkers,
		BatchSize:        DefaultBatchSize,
		ConnectTimeout:   DefaultConnectTimeout,
		DefaultDirectory: filepath.Join(homeDir, "Downloads"),
		Prompts:          domain.Prompts{BatchReview: DefaultBatchReviewPrompt},
	}
}
