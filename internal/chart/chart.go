// Package chart reads chord charts: optional YAML frontmatter followed by
// bar lines such as "| Dm7 G7 | Cmaj7 |".
package chart

import (
	"bytes"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var tagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

// ChordInBar is a chord symbol with its bar and its position inside the bar.
// Both are zero based.
type ChordInBar struct {
	Symbol string `json:"symbol"`
	Bar    int    `json:"bar"`
	Pos    int    `json:"pos"`
}

// Chart holds the output of parsing a chart file.
type Chart struct {
	Frontmatter map[string]interface{}
	Title       string
	Key         string
	Composer    string
	Tags        []string
	Body        string
	Chords      []ChordInBar
	Bars        int
}

// Symbols returns the chord symbols in reading order.
func (c *Chart) Symbols() []string {
	out := make([]string, len(c.Chords))
	for i, ch := range c.Chords {
		out[i] = ch.Symbol
	}
	return out
}

// Parse extracts frontmatter, bars and chords from raw chart bytes.
func Parse(data []byte) (*Chart, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}

	chords, bars, prose := parseBars(body)

	return &Chart{
		Frontmatter: fm,
		Title:       deriveTitle(fm, prose),
		Key:         strings.TrimSpace(stringField(fm, "key")),
		Composer:    stringField(fm, "composer"),
		Tags:        extractTags(prose, fm),
		Body:        body,
		Chords:      chords,
		Bars:        bars,
	}, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the chart body. If no frontmatter is found the entire content is body.
func splitFrontmatter(data []byte) (map[string]interface{}, string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data), nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]interface{}
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		// Invalid YAML: keep the whole file as body.
		return nil, string(data), nil
	}

	return fm, body, nil
}

// parseBars walks the body line by line. Lines without a bar line are
// returned as prose. Text before the first | of a line is a label and is
// skipped, and the empty segment after a closing | is not a bar. Bar numbers
// continue across lines.
func parseBars(body string) ([]ChordInBar, int, string) {
	var (
		chords []ChordInBar
		prose  strings.Builder
		bar    int
	)
	for _, line := range strings.Split(body, "\n") {
		if !strings.Contains(line, "|") {
			prose.WriteString(line)
			prose.WriteByte('\n')
			continue
		}
		segments := strings.Split(line, "|")[1:]
		if last := len(segments) - 1; last >= 0 && strings.TrimSpace(segments[last]) == "" {
			segments = segments[:last]
		}
		for _, seg := range segments {
			for pos, sym := range strings.Fields(seg) {
				chords = append(chords, ChordInBar{Symbol: sym, Bar: bar, Pos: pos})
			}
			bar++
		}
	}
	return chords, bar, prose.String()
}

func stringField(fm map[string]interface{}, name string) string {
	if fm == nil {
		return ""
	}
	s, _ := fm[name].(string)
	return s
}

// extractTags collects tags from the frontmatter "tags" field and from #tags
// in prose lines.
func extractTags(prose string, fm map[string]interface{}) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	if fm != nil {
		if v, ok := fm["tags"].([]interface{}); ok {
			for _, item := range v {
				if s, ok := item.(string); ok {
					add(s)
				}
			}
		}
	}
	for _, m := range tagRe.FindAllStringSubmatch(prose, -1) {
		add(m[1])
	}
	return out
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// "# " heading, otherwise empty string.
func deriveTitle(fm map[string]interface{}, prose string) string {
	if s := stringField(fm, "title"); s != "" {
		return s
	}
	for _, line := range strings.Split(prose, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
