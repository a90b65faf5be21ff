package codec

import (
	"fmt"
	"maps"
	"slices"

	"github.com/rogeraird/rgo/internal/models"
	"github.com/tinylib/msgp/msgp"
)

// EncodeSnapshot serializes s as a MessagePack map of string to string.
// Keys are written in sorted order so equal snapshots encode identically.
func EncodeSnapshot(s models.Snapshot) []byte {
	b := make([]byte, 0, 16+32*len(s))
	b = msgp.AppendMapHeader(b, uint32(len(s)))
	for _, k := range slices.Sorted(maps.Keys(s)) {
		b = msgp.AppendString(b, k)
		b = msgp.AppendString(b, s[k])
	}
	return b
}

// DecodeSnapshot parses a persistence file body written by EncodeSnapshot.
func DecodeSnapshot(b []byte) (models.Snapshot, error) {
	sz, rest, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return nil, &DecodeError{Reason: "read snapshot map", Err: err}
	}
	// Each entry takes at least two bytes, so a larger count is corrupt.
	if int64(sz) > int64(len(rest)/2) {
		return nil, &DecodeError{Reason: fmt.Sprintf("snapshot claims %d entries in %d bytes", sz, len(rest))}
	}
	out := make(models.Snapshot, sz)
	for range sz {
		var k, v string
		at := len(b) - len(rest)
		if k, rest, err = msgp.ReadStringBytes(rest); err != nil {
			return nil, &DecodeError{Offset: at, Reason: "read snapshot key", Err: err}
		}
		if v, rest, err = msgp.ReadStringBytes(rest); err != nil {
			return nil, &DecodeError{Offset: at, Reason: fmt.Sprintf("read value of %q", k), Err: err}
		}
		out[k] = v
	}
	if len(rest) != 0 {
		return nil, &DecodeError{Offset: len(b) - len(rest), Reason: fmt.Sprintf("%d trailing bytes", len(rest))}
	}
	return out, nil
}
