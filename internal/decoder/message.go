// Package decoder - message.go summarizes structured message payloads.
//
// Transport messages carry arbitrary JSON. The summary keeps the document
// shape intact but truncates long string leaves in place, so a message with a
// large embedded blob still renders as one short line.
package decoder

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/voxlab/pipescope/internal/frames"
)

// SummarizeMessage renders a structured message payload for display using
// the decoder's truncation budget.
func (d *Decoder) SummarizeMessage(data []byte) string {
	return summarizeJSON(string(data), d.truncateAt)
}

// summarizeJSON compacts data and truncates every string leaf longer than
// truncateAt characters. Non-JSON payloads are truncated as plain text.
func summarizeJSON(data string, truncateAt int) string {
	trimmed := strings.TrimSpace(data)
	if !gjson.Valid(trimmed) {
		return frames.TruncateRunes(trimmed, truncateAt)
	}

	compacted := compactJSON(trimmed)
	parsed := gjson.Parse(compacted)
	if !parsed.IsObject() && !parsed.IsArray() {
		return frames.TruncateRunes(compacted, truncateAt)
	}

	out := compacted
	for _, leaf := range longStringLeaves(parsed, "", truncateAt) {
		truncated := frames.TruncateRunes(leaf.value, truncateAt)
		if updated, err := sjson.Set(out, leaf.path, truncated); err == nil {
			out = updated
		}
	}
	return out
}

type stringLeaf struct {
	path  string
	value string
}

// longStringLeaves collects the paths of string values exceeding the limit.
func longStringLeaves(v gjson.Result, prefix string, limit int) []stringLeaf {
	var leaves []stringLeaf
	idx := 0
	v.ForEach(func(key, value gjson.Result) bool {
		var seg string
		if v.IsArray() {
			seg = strconv.Itoa(idx)
			idx++
		} else {
			seg = escapePathSegment(key.String())
		}
		path := seg
		if prefix != "" {
			path = prefix + "." + seg
		}

		switch {
		case value.IsObject() || value.IsArray():
			leaves = append(leaves, longStringLeaves(value, path, limit)...)
		case value.Type == gjson.String:
			if len([]rune(value.String())) > limit {
				leaves = append(leaves, stringLeaf{path: path, value: value.String()})
			}
		}
		return true
	})
	return leaves
}

// escapePathSegment escapes gjson/sjson path metacharacters in object keys.
func escapePathSegment(key string) string {
	r := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`, "@", `\@`)
	return r.Replace(key)
}

func compactJSON(data string) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(data)); err != nil {
		return data
	}
	return buf.String()
}
