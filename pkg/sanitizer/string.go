package sanitizer

import (
	"strings"
	"unicode"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)

	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' {
			return -1
		}
		return r
	}, s)
}

func truncate(limit int) Strategy {
	return func(s string) string {
		runes := []rune(s)
		if len(runes) <= limit {
			return s
		}
		return strings.TrimSpace(string(runes[:limit]))
	}
}

func NormalizeName(name string) string {
	return TrimAndNormalize(name)
}

// NormalizeNotes keeps line breaks but drops other control characters and caps the length in runes.
func NormalizeNotes(notes string, limit int) string {
	p := Pipeline{
		strings.TrimSpace,
		stripControl,
		truncate(limit),
	}
	return p.Apply(notes)
}

// NormalizeCode upper-cases and strips every whitespace character.
func NormalizeCode(code string) string {
	p := Pipeline{
		func(s string) string { return strings.Join(strings.Fields(s), "") },
		strings.ToUpper,
	}
	return p.Apply(code)
}
