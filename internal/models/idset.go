package models

import (
	"encoding/json"
	"slices"
)

// IDSet is a sorted set of product ids
type IDSet []int64

// NewIDSet builds a set from ids, dropping duplicates
func NewIDSet(ids ...int64) IDSet {
	s := IDSet{}
	for _, id := range ids {
		s.insert(id)
	}
	return s
}

// Has reports whether id is in the set
func (s IDSet) Has(id int64) bool {
	_, found := slices.BinarySearch(s, id)
	return found
}

// Clone returns an independent copy
func (s IDSet) Clone() IDSet {
	if s == nil {
		return nil
	}
	return slices.Clone(s)
}

// MarshalJSON encodes an empty set as [] rather than null
func (s IDSet) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]int64(s))
}

func (s *IDSet) insert(id int64) bool {
	i, found := slices.BinarySearch(*s, id)
	if found {
		return false
	}
	*s = slices.Insert(*s, i, id)
	return true
}

func (s *IDSet) delete(id int64) bool {
	i, found := slices.BinarySearch(*s, id)
	if !found {
		return false
	}
	*s = slices.Delete(*s, i, i+1)
	return true
}

// UnmarshalJSON decodes a list of ids into a sorted set
func (s *IDSet) UnmarshalJSON(data []byte) error {
	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewIDSet(ids...)
	return nil
}
