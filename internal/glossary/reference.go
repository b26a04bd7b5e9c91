package glossary

import (
	"fmt"
	"strings"
)

const blockMarker = "原文："

// MissingContext is the placeholder for terms absent from the reference text.
func MissingContext(term string) string {
	return fmt.Sprintf("未在参考文件中找到术语 '%s' 的上下文。", term)
}

// ParseReference maps terms to context. Text with 原文： markers is read as
// blocks whose first line names the term; otherwise each term's context is
// the first line containing it plus one neighbour line on each side.
func ParseReference(content string, terms []string) map[string]string {
	if strings.Contains(content, blockMarker) {
		if ref := parseBlocks(content); len(ref) > 0 {
			return ref
		}
	}
	return searchLines(content, terms)
}

func parseBlocks(content string) map[string]string {
	ref := make(map[string]string)
	blocks := strings.Split(content, blockMarker)[1:]
	for _, block := range blocks {
		head, rest, found := strings.Cut(block, "\n")
		if !found {
			continue
		}
		term := strings.TrimSpace(head)
		if term == "" {
			continue
		}
		ref[term] = strings.ReplaceAll(strings.TrimSpace(rest), "※", "")
	}
	return ref
}

func searchLines(content string, terms []string) map[string]string {
	ref := make(map[string]string)
	lines := strings.Split(content, "\n")
	for _, raw := range terms {
		term := strings.TrimSpace(raw)
		if term == "" {
			continue
		}
		if _, done := ref[term]; done {
			continue
		}
		for i, line := range lines {
			if !strings.Contains(line, term) {
				continue
			}
			start := max(0, i-1)
			end := min(len(lines), i+2)
			ref[term] = strings.TrimSpace(strings.Join(lines[start:end], "\n"))
			break
		}
	}
	return ref
}
