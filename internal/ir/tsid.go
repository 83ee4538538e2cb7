package ir

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// TSID identifies one concrete time series.
//
// Two TSIDs denote the same series when their unique strings are equal; Key
// is only the storage row id and may be NoKey for identifiers that have not
// been looked up yet.
type TSID struct {
	Key Key `json:"key,omitempty"`
	Identity
}

// UniqueString renders SITE.DATATYPE.INTERVAL.TABSEL, with .MODELID appended
// for modeled series. The result is NFC-normalized so that identifiers
// typed on different systems compare equal.
func (t TSID) UniqueString() string {
	parts := []string{t.Site, t.DataType, t.Interval, t.TableSelector}
	if t.ModelID != 0 {
		parts = append(parts, strconv.FormatInt(t.ModelID, 10))
	}
	return norm.NFC.String(strings.Join(parts, "."))
}

// String implements fmt.Stringer.
func (t TSID) String() string { return t.UniqueString() }

// Same reports whether a and b denote the same time series.
func (t TSID) Same(o TSID) bool { return t.UniqueString() == o.UniqueString() }

// ParseTSID parses the output of UniqueString.
func ParseTSID(s string) (TSID, error) {
	s = norm.NFC.String(strings.TrimSpace(s))
	parts := strings.Split(s, ".")
	if len(parts) != 4 && len(parts) != 5 {
		return TSID{}, fmt.Errorf("parse tsid %q: want 4 or 5 dot-separated fields, got %d", s, len(parts))
	}
	for i, p := range parts {
		if p == "" {
			return TSID{}, fmt.Errorf("parse tsid %q: field %d is empty", s, i+1)
		}
	}
	t := TSID{Identity: Identity{
		Site:          parts[0],
		DataType:      parts[1],
		Interval:      parts[2],
		TableSelector: parts[3],
	}}
	if len(parts) == 5 {
		model, err := strconv.ParseInt(parts[4], 10, 64)
		if err != nil || model <= 0 {
			return TSID{}, fmt.Errorf("parse tsid %q: model id must be a positive integer", s)
		}
		t.ModelID = model
	}
	return t, nil
}

// MustParseTSID is like ParseTSID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustParseTSID(s string) TSID {
	t, err := ParseTSID(s)
	if err != nil {
		panic(err)
	}
	return t
}
