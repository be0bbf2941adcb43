// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package descriptor

import (
	"fmt"
	"net/url"
	"strings"
)

// Segment types.
const (
	SegmentEngine  = "engine"
	SegmentClass   = "class"
	SegmentMethod  = "method"
	SegmentFixture = "fixture"
)

// Segment is one (type, value) pair of a UniqueID.
type Segment struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// String renders the segment as "[type:value]" with reserved characters in
// the value percent-encoded.
func (s Segment) String() string {
	return "[" + s.Type + ":" + segmentEscaper.Replace(s.Value) + "]"
}

var segmentEscaper = strings.NewReplacer("%", "%25", "[", "%5B", "]", "%5D")

// UniqueID is an ordered path of segments. A child's id is its parent's id
// plus exactly one segment.
//
// UniqueID values are treated as immutable; Append always copies.
type UniqueID []Segment

// NewUniqueID returns a root id for the given engine.
func NewUniqueID(engineID string) UniqueID {
	return UniqueID{{Type: SegmentEngine, Value: engineID}}
}

// Append returns a new id with seg added.
func (id UniqueID) Append(seg Segment) UniqueID {
	out := make(UniqueID, len(id), len(id)+1)
	copy(out, id)
	return append(out, seg)
}

// AppendSegment is shorthand for Append(Segment{typ, value}).
func (id UniqueID) AppendSegment(typ, value string) UniqueID {
	return id.Append(Segment{Type: typ, Value: value})
}

// Last returns the final segment. It panics on an empty id.
func (id UniqueID) Last() Segment {
	return id[len(id)-1]
}

// Parent returns the id without its final segment.
func (id UniqueID) Parent() UniqueID {
	if len(id) == 0 {
		return nil
	}
	return id[: len(id)-1 : len(id)-1]
}

// HasPrefix reports whether prefix is an ancestor-or-self of id.
func (id UniqueID) HasPrefix(prefix UniqueID) bool {
	if len(prefix) > len(id) {
		return false
	}
	for i := range prefix {
		if id[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Equal reports segment-wise equality.
func (id UniqueID) Equal(other UniqueID) bool {
	return len(id) == len(other) && id.HasPrefix(other)
}

// String renders "[engine:x]/[class:y]/...".
func (id UniqueID) String() string {
	parts := make([]string, len(id))
	for i, s := range id {
		parts[i] = s.String()
	}
	return strings.Join(parts, "/")
}

// ParseUniqueID is the inverse of UniqueID.String.
//
// Description:
//
//	Splits the string on "]/[" boundaries. Values never contain raw
//	brackets because String percent-encodes them, so the split is
//	unambiguous even for fixture values such as "[a=1, b=2]".
//
// Outputs:
//
//	UniqueID - The parsed id.
//	error - ErrMalformedUniqueID (wrapped) when the input is not a
//	        sequence of "[type:value]" segments.
func ParseUniqueID(s string) (UniqueID, error) {
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, fmt.Errorf("%w: %q", ErrMalformedUniqueID, s)
	}

	raw := strings.Split(s[1:len(s)-1], "]/[")
	id := make(UniqueID, 0, len(raw))
	for _, part := range raw {
		typ, value, ok := strings.Cut(part, ":")
		if !ok || typ == "" {
			return nil, fmt.Errorf("%w: segment %q in %q", ErrMalformedUniqueID, part, s)
		}
		decoded, err := url.PathUnescape(value)
		if err != nil {
			return nil, fmt.Errorf("%w: segment %q: %v", ErrMalformedUniqueID, part, err)
		}
		id = append(id, Segment{Type: typ, Value: decoded})
	}
	return id, nil
}
