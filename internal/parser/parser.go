// Package parser extracts frontmatter, a name and bullet items from
// Markdown category files.
package parser

import (
	"bytes"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	bulletRe   = regexp.MustCompile(`^\s*(?:[-*+]|\d+[.)])\s+(?:\[[ xX]\]\s+)?(.+)$`)
	headingRe  = regexp.MustCompile(`^#\s+(.+)$`)
	emphasisRe = regexp.MustCompile(`[*_` + "`" + `]+`)
)

// Result holds the output of parsing a Markdown file.
type Result struct {
	Frontmatter map[string]interface{}
	Body        string
	Name        string
	Description string
	Items       []string
}

// Parse extracts frontmatter, name, description and bullet items from raw
// Markdown bytes.
func Parse(data []byte) (*Result, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}

	return &Result{
		Frontmatter: fm,
		Body:        body,
		Name:        deriveName(fm, body),
		Description: deriveDescription(fm, body),
		Items:       extractItems(body),
	}, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. If no frontmatter is found the entire content is body.
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

// extractItems returns deduplicated bullet texts in document order.
func extractItems(body string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, line := range strings.Split(body, "\n") {
		m := bulletRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		item := strings.TrimSpace(emphasisRe.ReplaceAllString(m[1], ""))
		if item == "" {
			continue
		}
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

// deriveName returns the frontmatter "name" or "title", otherwise the first
// H1 heading, otherwise empty string.
func deriveName(fm map[string]interface{}, body string) string {
	for _, key := range []string{"name", "title"} {
		if s := stringField(fm, key); s != "" {
			return s
		}
	}
	for _, line := range strings.Split(body, "\n") {
		if m := headingRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// deriveDescription returns the frontmatter "description", otherwise the
// first plain paragraph line of the body.
func deriveDescription(fm map[string]interface{}, body string) string {
	if s := stringField(fm, "description"); s != "" {
		return s
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || bulletRe.MatchString(trimmed) {
			continue
		}
		return trimmed
	}
	return ""
}

func stringField(fm map[string]interface{}, key string) string {
	if fm == nil {
		return ""
	}
	if s, ok := fm[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
