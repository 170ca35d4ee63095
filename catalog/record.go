package catalog

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// Record is one manifest entry. Every field is optional.
type Record struct {
	URL        string   `json:"url,omitempty"`
	Filename   string   `json:"filename,omitempty"`
	SizeMB     *float64 `json:"sizeMB,omitempty"`
	UploadedAt string   `json:"uploadedAt,omitempty"`
}

// UnmarshalJSON decodes each field on its own so that a wrongly typed field
// only drops that field. Elements that are not objects decode to an empty Record.
func (r *Record) UnmarshalJSON(b []byte) error {
	*r = Record{}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil
	}
	var s string
	if json.Unmarshal(fields["url"], &s) == nil {
		r.URL = s
	}
	s = ""
	if json.Unmarshal(fields["filename"], &s) == nil {
		r.Filename = s
	}
	s = ""
	if json.Unmarshal(fields["uploadedAt"], &s) == nil {
		r.UploadedAt = s
	}
	var size *float64
	if json.Unmarshal(fields["sizeMB"], &size) == nil {
		r.SizeMB = size
	}
	return nil
}

var uploadLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseUploaded parses an upload timestamp. Values without a zone are read as UTC.
func ParseUploaded(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range uploadLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Uploaded returns the parsed upload time of r.
func (r Record) Uploaded() (time.Time, bool) {
	return ParseUploaded(r.UploadedAt)
}

func (r Record) sortKey() time.Time {
	if t, ok := r.Uploaded(); ok {
		return t
	}
	return time.Unix(0, 0)
}

// WorkingSet is the manifest sorted newest first. Treat it as read-only.
type WorkingSet []Record

// NewWorkingSet copies records and sorts them by upload time, newest first.
// Missing or unparseable timestamps count as the Unix epoch. Ties keep input order.
func NewWorkingSet(records []Record) WorkingSet {
	ws := make(WorkingSet, len(records))
	copy(ws, records)
	keys := make([]time.Time, len(ws))
	idx := make([]int, len(ws))
	for i := range ws {
		keys[i] = ws[i].sortKey()
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return keys[idx[a]].After(keys[idx[b]])
	})
	out := make(WorkingSet, len(ws))
	for i, j := range idx {
		out[i] = ws[j]
	}
	return out
}

// TotalSizeMB sums the sizes that are present.
func TotalSizeMB(ws WorkingSet) float64 {
	var sum float64
	for _, r := range ws {
		if r.SizeMB != nil {
			sum += *r.SizeMB
		}
	}
	return sum
}
