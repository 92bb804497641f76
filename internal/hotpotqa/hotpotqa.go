// Package hotpotqa converts HotpotQA dataset dumps into JSONL documents that
// can be fed to the index commands.
package hotpotqa

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"
)

// ContextSeparator joins the context passages of one record.
const ContextSeparator = "\n\n"

// ErrNotArray is returned when the input is not a JSON array.
var ErrNotArray = errors.New("hotpotqa: input is not a JSON array")

// Convert reads a JSON array of records from r and writes one JSON object
// per line to w. Records without an id get "hotpotqa_<idx>", and a list
// context is flattened into a single string. It returns the record count.
func Convert(r io.Reader, w io.Writer) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("hotpotqa: read: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return 0, errors.New("hotpotqa: invalid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return 0, ErrNotArray
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	var (
		n       int
		convErr error
	)
	root.ForEach(func(_, value gjson.Result) bool {
		doc := make(map[string]any)
		if err := json.Unmarshal([]byte(value.Raw), &doc); err != nil {
			convErr = fmt.Errorf("hotpotqa: record %d: %w", n, err)
			return false
		}
		Normalize(doc, n)
		if err := enc.Encode(doc); err != nil {
			convErr = fmt.Errorf("hotpotqa: write record %d: %w", n, err)
			return false
		}
		n++
		return true
	})
	return n, convErr
}

// Normalize assigns a default id and flattens the context of one record.
func Normalize(doc map[string]any, idx int) {
	if _, ok := doc["id"]; !ok {
		doc["id"] = fmt.Sprintf("hotpotqa_%d", idx)
	}
	if list, ok := doc["context"].([]any); ok {
		doc["context"] = flatten(list)
	}
}

// flatten joins the context passages. A passage is either a string or the
// [title, [sentences...]] pair of the distractor format.
func flatten(list []any) string {
	parts := make([]string, 0, len(list))
	for _, item := range list {
		switch v := item.(type) {
		case string:
			parts = append(parts, v)
		case []any:
			var sb strings.Builder
			for _, piece := range v {
				switch p := piece.(type) {
				case string:
					if sb.Len() > 0 {
						sb.WriteString("\n")
					}
					sb.WriteString(p)
				case []any:
					if sb.Len() > 0 {
						sb.WriteString("\n")
					}
					for _, s := range p {
						if str, ok := s.(string); ok {
							sb.WriteString(str)
						}
					}
				}
			}
			parts = append(parts, sb.String())
		default:
			parts = append(parts, fmt.Sprint(v))
		}
	}
	return strings.Join(parts, ContextSeparator)
}

// Contexts returns the context field of every JSONL line in r, for indexing.
// Lines without a string context are skipped.
func Contexts(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("hotpotqa: read: %w", err)
	}
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !gjson.Valid(line) {
			return nil, fmt.Errorf("hotpotqa: invalid JSONL line %q", truncate(line, 40))
		}
		if c := gjson.Get(line, "context"); c.Type == gjson.String && c.Str != "" {
			out = append(out, c.Str)
		}
	}
	return out, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
