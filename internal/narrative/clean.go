package narrative

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxTitleRunes caps generated titles.
const MaxTitleRunes = 20

var (
	hanPattern      = regexp.MustCompile(`\p{Han}+`)
	spacePattern    = regexp.MustCompile(`[ \t]{2,}`)
	titlePrefix     = regexp.MustCompile(`^(제목|Title)\s*[:：]\s*`)
	templateMarkers = []string{"[|assistant|]", "[|user|]", "[|system|]", "<|im_end|>"}
)

// CleanNarrative strips ideographs and template debris from generated prose.
func CleanNarrative(text string) string {
	for _, marker := range templateMarkers {
		text = strings.ReplaceAll(text, marker, "")
	}
	text = hanPattern.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "()", "")
	text = spacePattern.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// CleanTitle keeps the first non-empty line without quotes, periods or a
// "제목:" prefix and truncates it to MaxTitleRunes.
func CleanTitle(text string) string {
	text = CleanNarrative(text)
	first := ""
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			first = line
			break
		}
	}
	first = strings.Map(func(r rune) rune {
		switch r {
		case '"', '\'', '“', '”', '‘', '’', '.', '#', '*':
			return -1
		}
		return r
	}, first)
	first = strings.TrimSpace(titlePrefix.ReplaceAllString(strings.TrimSpace(first), ""))
	if utf8.RuneCountInString(first) > MaxTitleRunes {
		first = strings.TrimSpace(string([]rune(first)[:MaxTitleRunes]))
	}
	return first
}
