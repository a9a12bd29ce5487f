// Package sanitize strips markup and prompt-injection phrases from free text
// before it is concatenated into a model prompt.
//
// This is a best-effort filter, not a security boundary: it removes the
// patterns we know about and keeps the rest of the text intact. Prompts must
// still treat embedded fields as untrusted data.
package sanitize

import (
	_ "embed"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/roofing-insights/internal/model"
)

//go:embed patterns.yaml
var patternsYAML []byte

// maxPasses bounds repeated stripping of phrases that re-form after removal.
const maxPasses = 4

// Pattern is one named injection phrase.
type Pattern struct {
	Name  string `yaml:"name"`
	Regex string `yaml:"regex"`
}

type patternFile struct {
	Patterns []Pattern `yaml:"patterns"`
}

// Guard cleans untrusted text.
type Guard struct {
	patterns []*regexp.Regexp
}

// ParsePatterns decodes a YAML pattern file.
func ParsePatterns(data []byte) ([]Pattern, error) {
	var pf patternFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, eris.Wrap(err, "sanitize: parse patterns")
	}
	return pf.Patterns, nil
}

// New compiles the given patterns case-insensitively.
func New(patterns []Pattern) (*Guard, error) {
	g := &Guard{patterns: make([]*regexp.Regexp, 0, len(patterns))}
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p.Regex)
		if err != nil {
			return nil, eris.Wrapf(err, "sanitize: compile pattern %q", p.Name)
		}
		g.patterns = append(g.patterns, re)
	}
	return g, nil
}

var defaultGuard = sync.OnceValues(func() (*Guard, error) {
	patterns, err := ParsePatterns(patternsYAML)
	if err != nil {
		return nil, err
	}
	return New(patterns)
})

// Default returns the guard built from the embedded pattern file. The file is
// compiled into the binary, so a failure here is a programming error.
func Default() *Guard {
	g, err := defaultGuard()
	if err != nil {
		panic(err)
	}
	return g
}

// Clean truncates text to maxLen runes, removes angle brackets and known
// injection phrases, and collapses whitespace. The result never exceeds
// maxLen runes.
func (g *Guard) Clean(text string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	text = truncate(text, maxLen)
	text = strings.NewReplacer("<", "", ">", "").Replace(text)

	for range maxPasses {
		before := text
		for _, re := range g.patterns {
			text = re.ReplaceAllString(text, " ")
		}
		if text == before {
			break
		}
	}

	return strings.Join(strings.Fields(text), " ")
}

// CleanJob returns a copy of rec with its free-text fields cleaned.
func (g *Guard) CleanJob(rec model.JobCostRecord, maxLen int) model.JobCostRecord {
	rec.ClientName = g.Clean(rec.ClientName, maxLen)
	rec.Stage = g.Clean(rec.Stage, maxLen)
	if len(rec.PendingStages) > 0 {
		stages := make([]string, 0, len(rec.PendingStages))
		for _, s := range rec.PendingStages {
			if c := g.Clean(s, maxLen); c != "" {
				stages = append(stages, c)
			}
		}
		rec.PendingStages = stages
	}
	return rec
}

func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}
