// Package crossref finds Redmine issue references such as "#123" in free
// text.
package crossref

import (
	"regexp"
	"strconv"
)

// issueRefPattern matches "#123" not preceded by a word character or '&',
// so HTML entities like "&#39;" and anchors like "page#2" are skipped.
var issueRefPattern = regexp.MustCompile(`(?:^|[^\w&])#(\d+)\b`)

// ExtractIssueIDs returns the issue ids referenced in text, deduplicated
// in order of first occurrence.
func ExtractIssueIDs(text string) []int {
	matches := issueRefPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[int]bool)
	var result []int
	for _, m := range matches {
		id, err := strconv.Atoi(m[1])
		if err != nil || id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, id)
	}
	return result
}

// MatchCrossRefs extracts the issues referenced by texts, leaving out self.
// If known is non-empty, only ids in that set are returned.
func MatchCrossRefs(self int, texts []string, known map[int]bool) []int {
	seen := make(map[int]bool)
	var result []int
	for _, text := range texts {
		for _, id := range ExtractIssueIDs(text) {
			if id == self || seen[id] {
				continue
			}
			if len(known) > 0 && !known[id] {
				continue
			}
			seen[id] = true
			result = append(result, id)
		}
	}
	return result
}
