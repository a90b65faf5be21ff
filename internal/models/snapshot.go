package models

import "maps"

// Snapshot is a point-in-time copy of the link table, key to target URL.
type Snapshot map[string]string

// Clone returns an independent copy. A nil snapshot clones to an empty one.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	return maps.Clone(s)
}
