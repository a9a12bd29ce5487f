package advisor

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/roofing-insights/internal/model"
	"github.com/sells-group/roofing-insights/internal/sanitize"
)

const (
	maxTitleLen = 120
	maxBodyLen  = 600
)

// ExtractJSONObject returns the first balanced top-level {...} span in text.
// Braces inside JSON strings are ignored, so prose and markdown fences around
// the object do not matter. Later spans are never considered, even when the
// first one is not valid JSON; decoding it is the caller's job.
func ExtractJSONObject(text string) (json.RawMessage, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil, false
	}
	end, ok := matchBrace(text, start)
	if !ok {
		return nil, false
	}
	return json.RawMessage(text[start : end+1]), true
}

// matchBrace returns the index of the brace closing the one at start.
func matchBrace(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

type rawInsight struct {
	Kind  string `json:"kind"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

type rawAdvice struct {
	Summary  *string       `json:"summary"`
	Insights *[]rawInsight `json:"insights"`
}

// parsedAdvice is a validated completion payload.
type parsedAdvice struct {
	Summary  string
	Insights []model.Insight
	Dropped  int
}

// parseAdvice extracts, decodes and validates a completion. Any shape other
// than a non-blank summary plus at least one usable insight is an error.
func parseAdvice(text string, guard *sanitize.Guard) (*parsedAdvice, error) {
	raw, ok := ExtractJSONObject(text)
	if !ok {
		return nil, eris.New("advisor: no JSON object in completion")
	}

	var adv rawAdvice
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&adv); err != nil {
		return nil, eris.Wrap(err, "advisor: decode completion")
	}

	if adv.Insights == nil {
		return nil, eris.New("advisor: completion has no insights")
	}
	if len(*adv.Insights) == 0 {
		return nil, eris.New("advisor: completion has empty insights")
	}
	if adv.Summary == nil {
		return nil, eris.New("advisor: completion has no summary")
	}
	summary := guard.Clean(*adv.Summary, maxBodyLen)
	if summary == "" {
		return nil, eris.New("advisor: completion summary is blank")
	}

	out := &parsedAdvice{Summary: summary}
	for _, ri := range *adv.Insights {
		kind, ok := model.ParseInsightKind(ri.Kind)
		title := guard.Clean(ri.Title, maxTitleLen)
		if !ok || title == "" {
			out.Dropped++
			continue
		}
		out.Insights = append(out.Insights, model.Insight{
			Kind:  kind,
			Title: title,
			Body:  guard.Clean(ri.Body, maxBodyLen),
		})
	}
	if len(out.Insights) == 0 {
		return nil, eris.Errorf("advisor: none of %d insights usable", len(*adv.Insights))
	}

	out.Insights = model.NormalizeInsights(out.Insights)
	return out, nil
}
