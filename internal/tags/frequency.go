package tags

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
)

// TagCount is one row of a frequency table.
type TagCount struct {
	Tag   string
	Count int
}

// Frequency is a tag frequency table ordered by descending count. Tags
// with equal counts keep their first-occurrence order from the source
// sequence, so the table is deterministic for a fixed input order.
type Frequency []TagCount

// CountOccurrences builds a Frequency from a raw, non-deduplicated
// occurrence list.
func CountOccurrences(occurrences []string) Frequency {
	counts := make(map[string]int, len(occurrences))
	order := make([]string, 0, len(occurrences))
	for _, tag := range occurrences {
		if _, ok := counts[tag]; !ok {
			order = append(order, tag)
		}
		counts[tag]++
	}

	freq := make(Frequency, 0, len(order))
	for _, tag := range order {
		freq = append(freq, TagCount{Tag: tag, Count: counts[tag]})
	}
	sort.SliceStable(freq, func(i, j int) bool {
		return freq[i].Count > freq[j].Count
	})
	return freq
}

// Get returns the count for a tag, zero if absent.
func (f Frequency) Get(tag string) int {
	for _, tc := range f {
		if tc.Tag == tag {
			return tc.Count
		}
	}
	return 0
}

// MarshalJSON renders the table as a JSON object whose keys keep the
// table order. A plain map would re-sort keys lexicographically.
func (f Frequency) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, tc := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(tc.Tag)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(tc.Count))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the object form back, preserving key order.
func (f *Frequency) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("tag frequency: expected JSON object")
	}

	out := Frequency{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return errors.New("tag frequency: non-string key")
		}
		var count int
		if err := dec.Decode(&count); err != nil {
			return err
		}
		out = append(out, TagCount{Tag: key, Count: count})
	}
	*f = out
	return nil
}
