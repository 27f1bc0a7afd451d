// Package frontmatter parses and renders the YAML header block of markdown
// knowledge files. Parse and Render are inverses for every field Render
// emits, so a regenerated file always reproduces its record's metadata.
package frontmatter

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/arpa73/AIKnowSys-sub002/internal/apperr"
)

const delim = "---"

// Field is one frontmatter key/value pair. Render emits fields in slice
// order, which keeps regenerated blocks deterministic.
type Field struct {
	Key   string
	Value any
}

// Parse splits raw markdown into frontmatter fields and body. A file with
// no frontmatter block yields an empty map and the full content as body:
// absence means "unknown metadata", not corruption. An opening delimiter
// without a matching closing delimiter, or an unparsable YAML block, is a
// malformed-frontmatter error.
func Parse(data []byte) (map[string]any, string, error) {
	// Editors on Windows save CRLF; normalize so the fence detection and
	// body split see plain LF either way.
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim+"\n")) && !bytes.Equal(trimmed, []byte(delim)) {
		return map[string]any{}, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n" + delim))
	if idx < 0 {
		return nil, "", apperr.Malformed("", fmt.Errorf("opening %q delimiter without closing delimiter", delim))
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	fields := map[string]any{}
	if err := yaml.Unmarshal(yamlBlock, &fields); err != nil {
		return nil, "", apperr.Malformed("", err)
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, body, nil
}

// Render produces a canonical markdown document: the frontmatter block with
// fields in the given order, a blank separator line, then the body verbatim.
func Render(fields []Field, body string) []byte {
	var b strings.Builder
	b.WriteString(delim + "\n")
	for _, f := range fields {
		writeField(&b, f.Key, f.Value)
	}
	b.WriteString(delim + "\n")
	if body != "" {
		b.WriteString("\n")
		b.WriteString(body)
	}
	return []byte(b.String())
}

// writeField renders one key/value pair. Scalars go inline, string lists
// as block sequences, and anything else through the YAML encoder indented
// under the key.
func writeField(b *strings.Builder, key string, value any) {
	switch v := value.(type) {
	case string:
		if strings.Contains(v, "\n") {
			writeBlock(b, key, v)
			return
		}
		fmt.Fprintf(b, "%s: %s\n", key, yamlScalar(v))
	case int:
		fmt.Fprintf(b, "%s: %d\n", key, v)
	case int64:
		fmt.Fprintf(b, "%s: %d\n", key, v)
	case float64:
		fmt.Fprintf(b, "%s: %v\n", key, v)
	case bool:
		fmt.Fprintf(b, "%s: %t\n", key, v)
	case []string:
		fmt.Fprintf(b, "%s:\n", key)
		for _, item := range v {
			fmt.Fprintf(b, "  - %s\n", yamlScalar(item))
		}
	case []any:
		if !allScalars(v) {
			writeBlock(b, key, v)
			return
		}
		fmt.Fprintf(b, "%s:\n", key)
		for _, item := range v {
			fmt.Fprintf(b, "  - %s\n", yamlValue(item))
		}
	default:
		writeBlock(b, key, v)
	}
}

// allScalars reports whether every element can be rendered inline as a
// single-line sequence entry. Maps, nested lists, and multiline strings
// need the YAML encoder instead.
func allScalars(items []any) bool {
	for _, item := range items {
		switch v := item.(type) {
		case string:
			if strings.Contains(v, "\n") {
				return false
			}
		case int, int64, float64, bool:
		default:
			return false
		}
	}
	return true
}

// writeBlock renders the whole key/value pair through the YAML encoder,
// which picks the correct style for multiline strings and nested values.
func writeBlock(b *strings.Builder, key string, value any) {
	out, err := yaml.Marshal(map[string]any{key: value})
	if err != nil {
		fmt.Fprintf(b, "%s: %s\n", key, yamlScalar(fmt.Sprintf("%v", value)))
		return
	}
	b.Write(out)
}

// yamlScalar renders a string value with quoting only when YAML requires it.
func yamlScalar(s string) string {
	out, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Sprintf("%q", s)
	}
	return strings.TrimRight(string(out), "\n")
}

// yamlValue renders any scalar value the way the YAML encoder would,
// preserving its type on reparse (ints stay ints, bools stay bools).
func yamlValue(v any) string {
	out, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return strings.TrimRight(string(out), "\n")
}
