package keywords

import (
	"cmp"
	"errors"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"vench/internal/config"
)

var (
	// ErrTooShort marks a comment whose normalised form is below the minimum.
	ErrTooShort = errors.New("comment too short")
	// ErrNoTokens marks a comment with no usable keyword candidates.
	ErrNoTokens = errors.New("no keyword candidates")
)

var (
	nonTextPattern = regexp.MustCompile(`[^\p{Hangul}\p{Latin}\p{N}\s]+`)
	spacePattern   = regexp.MustCompile(`\s+`)
)

// Options tune extraction.
type Options struct {
	TopN            int
	MinCommentChars int
	MinTokenChars   int
	ModelVersion    string
}

// OptionsFrom maps the [keywords] config section.
func OptionsFrom(cfg config.Keywords) Options {
	return Options{
		TopN:            cfg.TopN,
		MinCommentChars: cfg.MinCommentChars,
		MinTokenChars:   cfg.MinTokenChars,
		ModelVersion:    cfg.ModelVersion,
	}
}

// Result is one extraction.
type Result struct {
	Normalized   string
	Keywords     []string
	ModelVersion string
}

// Extractor is safe for concurrent use.
type Extractor struct {
	opts Options
}

// NewExtractor applies defaults to zero options.
func NewExtractor(opts Options) *Extractor {
	defaults := config.Default().Keywords
	if opts.TopN <= 0 {
		opts.TopN = defaults.TopN
	}
	if opts.MinCommentChars <= 0 {
		opts.MinCommentChars = defaults.MinCommentChars
	}
	if opts.MinTokenChars <= 0 {
		opts.MinTokenChars = defaults.MinTokenChars
	}
	if strings.TrimSpace(opts.ModelVersion) == "" {
		opts.ModelVersion = defaults.ModelVersion
	}
	return &Extractor{opts: opts}
}

// ModelVersion is the tag stored with every keyword row.
func (e *Extractor) ModelVersion() string {
	return e.opts.ModelVersion
}

// Normalize returns the cleaned comment used for the length check and
// tokenisation.
func (e *Extractor) Normalize(text string) string {
	text = norm.NFC.String(strings.TrimSpace(text))
	text = collapseRepeats(text)
	text = nonTextPattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(spacePattern.ReplaceAllString(text, " "))
}

// TooShort reports whether text fails the minimum length after
// normalisation. Blank text is always too short.
func (e *Extractor) TooShort(text string) bool {
	return utf8.RuneCountInString(e.Normalize(text)) < e.opts.MinCommentChars
}

// Extract returns up to TopN keywords ordered by frequency.
func (e *Extractor) Extract(text string) (Result, error) {
	result := Result{ModelVersion: e.opts.ModelVersion}
	result.Normalized = e.Normalize(text)
	if utf8.RuneCountInString(result.Normalized) < e.opts.MinCommentChars {
		return result, ErrTooShort
	}
	tokens := e.Tokens(result.Normalized)
	if len(tokens) == 0 {
		return result, ErrNoTokens
	}
	result.Keywords = topN(tokens, e.opts.TopN)
	return result, nil
}

// Tokens splits normalised text into filtered keyword candidates in order.
func (e *Extractor) Tokens(normalized string) []string {
	fold := cases.Fold()
	fields := strings.Fields(normalized)
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		token := e.stripParticle(fold.String(field))
		if utf8.RuneCountInString(token) < e.opts.MinTokenChars || IsStopword(token) || jamoOnly(token) {
			continue
		}
		out = append(out, token)
	}
	return out
}

func (e *Extractor) stripParticle(token string) string {
	if IsStopword(token) {
		return token
	}
	for _, p := range particles {
		stem, ok := strings.CutSuffix(token, p)
		if ok && utf8.RuneCountInString(stem) >= e.opts.MinTokenChars {
			return stem
		}
	}
	return token
}

// jamoOnly matches laughter and crying runs such as "ㅋㅋ" or "ㅠㅠ".
func jamoOnly(token string) bool {
	for _, r := range token {
		if r < 0x3131 || r > 0x318E {
			return false
		}
	}
	return true
}

// collapseRepeats shortens runs of three or more identical runes to two.
// RE2 has no backreferences, so this walks the runes directly.
func collapseRepeats(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	var prev rune
	run := 0
	for _, r := range text {
		if run > 0 && r == prev {
			run++
		} else {
			prev, run = r, 1
		}
		if run <= 2 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func topN(tokens []string, n int) []string {
	counts := make(map[string]int, len(tokens))
	order := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if counts[token] == 0 {
			order = append(order, token)
		}
		counts[token]++
	}
	// Stable sort keeps first-occurrence order among equal counts.
	slices.SortStableFunc(order, func(a, b string) int {
		return cmp.Compare(counts[b], counts[a])
	})
	if len(order) > n {
		order = order[:n]
	}
	return order
}
