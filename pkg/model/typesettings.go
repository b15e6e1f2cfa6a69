package model

import (
	"sort"
	"strconv"
	"strings"
)

// MergeGuestPublicPagesKey is the group type-settings flag that opts a site
// into merged guest navigation.
const MergeGuestPublicPagesKey = "mergeGuestPublicPages"

// LastTemplateCopyKey records when a layout was last copied from its layout
// set prototype, as unix milliseconds.
const LastTemplateCopyKey = "layoutSetPrototypeLastCopyDate"

// TypeSettings is a newline-delimited key=value property bag serialized into
// a single column, used by groups and layouts for loosely structured settings.
type TypeSettings map[string]string

// ParseTypeSettings parses the serialized key=value form. Blank lines and
// lines without a separator are skipped.
func ParseTypeSettings(s string) TypeSettings {
	ts := TypeSettings{}
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		ts[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return ts
}

// Get returns the value for key, or "" when absent.
func (ts TypeSettings) Get(key string) string {
	if ts == nil {
		return ""
	}
	return ts[key]
}

// GetBool returns the boolean value for key; absent or unparsable values are
// false.
func (ts TypeSettings) GetBool(key string) bool {
	v, err := strconv.ParseBool(ts.Get(key))
	if err != nil {
		return false
	}
	return v
}

// Set stores a value under key.
func (ts TypeSettings) Set(key, value string) {
	ts[key] = value
}

// Clone returns a copy of the property bag.
func (ts TypeSettings) Clone() TypeSettings {
	c := make(TypeSettings, len(ts))
	for k, v := range ts {
		c[k] = v
	}
	return c
}

// String serializes the bag back to its key=value form with keys sorted, so
// the stored representation is stable.
func (ts TypeSettings) String() string {
	keys := make([]string, 0, len(ts))
	for k := range ts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(ts[k])
	}
	return sb.String()
}
