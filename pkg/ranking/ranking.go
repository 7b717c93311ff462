// Package ranking models backend-ordered recommendation lists. The order the
// service returns is authoritative: first is best, and nothing here re-sorts,
// clamps, or otherwise edits the entries.
package ranking

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Entry is one labelled confidence score. Confidence is a percentage in
// [0,100]; values may legitimately be non-monotonic across the list.
type Entry struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// List is an ordered sequence of entries as returned by a prediction backend.
type List struct {
	entries []Entry
}

// Row is the display projection of a single entry. Rank is 1-based.
type Row struct {
	Rank       int
	Label      string
	Confidence float64
}

// New builds a List after validating every confidence value. A single
// out-of-range entry rejects the whole list; the caller logs and ignores it.
func New(entries []Entry) (List, error) {
	for i, entry := range entries {
		if entry.Confidence < 0 || entry.Confidence > 100 {
			return List{}, fmt.Errorf("ranking: entry %d (%q) confidence %v outside [0,100]",
				i, entry.Label, entry.Confidence)
		}
	}
	return List{entries: append([]Entry(nil), entries...)}, nil
}

// Parse decodes a raw JSON array of entries. The element label key and
// confidence key vary by backend ("fertilizer"/"crop" and "probability"), so
// callers pass the key names used on the wire.
func Parse(raw json.RawMessage, labelKey, confidenceKey string, logger *zap.Logger) (List, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return List{}, fmt.Errorf("ranking: decode list: %w", err)
	}

	entries := make([]Entry, 0, len(items))
	for i, item := range items {
		var label string
		if rawLabel, ok := item[labelKey]; ok {
			if err := json.Unmarshal(rawLabel, &label); err != nil {
				return List{}, fmt.Errorf("ranking: entry %d: label is not a string", i)
			}
		}
		if strings.TrimSpace(label) == "" {
			return List{}, fmt.Errorf("ranking: entry %d: missing %q", i, labelKey)
		}
		var confidence float64
		if rawConf, ok := item[confidenceKey]; ok {
			if err := json.Unmarshal(rawConf, &confidence); err != nil {
				return List{}, fmt.Errorf("ranking: entry %d (%q): %s is not numeric", i, label, confidenceKey)
			}
		} else {
			return List{}, fmt.Errorf("ranking: entry %d (%q): missing %q", i, label, confidenceKey)
		}
		entries = append(entries, Entry{Label: label, Confidence: confidence})
	}

	list, err := New(entries)
	if err != nil {
		logger.Warn("rejected ranked list", zap.Error(err))
		return List{}, err
	}
	return list, nil
}

// Len returns the number of entries.
func (l List) Len() int { return len(l.entries) }

// Rows projects the entries into (rank, label, confidence) triples in the
// original order.
func (l List) Rows() []Row {
	rows := make([]Row, 0, len(l.entries))
	for i, entry := range l.entries {
		rows = append(rows, Row{Rank: i + 1, Label: entry.Label, Confidence: entry.Confidence})
	}
	return rows
}

// Entries returns a copy of the underlying entries.
func (l List) Entries() []Entry {
	return append([]Entry(nil), l.entries...)
}

// Bar renders a fixed-width text gauge for a confidence value, used by the
// CLI front-end.
func Bar(confidence float64, width int) string {
	if width <= 0 {
		width = 20
	}
	filled := int(confidence / 100 * float64(width))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
