// Package codec implements the binary wire format of the command channel and
// of the persistence file.
//
// Commands are MessagePack values laid out as an externally tagged union:
// a variant without fields is its name as a string ("List", "Persist"), a
// variant with fields is a one-entry map from its name to the field array
// ({"Add": [key, value]}, {"Remove": [key]}). Decoding also accepts fields as
// a name-keyed map and field-less variants as {"List": nil} or {"List": []},
// which other MessagePack serializers emit for the same union.
package codec

import (
	"errors"
	"fmt"
	"slices"

	"github.com/rogeraird/rgo/internal/models"
	"github.com/tinylib/msgp/msgp"
)

// DecodeError reports a payload that does not match any known command shape.
// It is recoverable: the consumer skips the payload and keeps reading.
type DecodeError struct {
	Offset int // byte offset in the payload where decoding stopped
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("codec: decode at offset %d: %s: %v", e.Offset, e.Reason, e.Err)
	}
	return fmt.Sprintf("codec: decode at offset %d: %s", e.Offset, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ErrUnknownCommand is returned by Encode for a nil or foreign Command value.
var ErrUnknownCommand = errors.New("codec: unknown command")

// Encode serializes cmd.
func Encode(cmd models.Command) ([]byte, error) {
	return AppendCommand(nil, cmd)
}

// AppendCommand appends the encoding of cmd to b.
func AppendCommand(b []byte, cmd models.Command) ([]byte, error) {
	switch c := cmd.(type) {
	case models.Add:
		b = msgp.AppendMapHeader(b, 1)
		b = msgp.AppendString(b, string(models.KindAdd))
		b = msgp.AppendArrayHeader(b, 2)
		b = msgp.AppendString(b, c.Key)
		b = msgp.AppendString(b, c.Value)
	case models.Remove:
		b = msgp.AppendMapHeader(b, 1)
		b = msgp.AppendString(b, string(models.KindRemove))
		b = msgp.AppendArrayHeader(b, 1)
		b = msgp.AppendString(b, c.Key)
	case models.List, models.Persist:
		b = msgp.AppendString(b, string(c.Kind()))
	default:
		return b, fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
	return b, nil
}

// Decode parses exactly one command. Trailing bytes are a DecodeError.
func Decode(payload []byte) (models.Command, error) {
	cmd, rest, err := DecodeNext(payload)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, &DecodeError{Offset: len(payload) - len(rest), Reason: fmt.Sprintf("%d trailing bytes", len(rest))}
	}
	return cmd, nil
}

// DecodeAll parses back-to-back commands until payload is exhausted. On
// failure it returns the commands decoded before the bad one together with
// the error.
func DecodeAll(payload []byte) ([]models.Command, error) {
	var cmds []models.Command
	rest := payload
	for len(rest) > 0 {
		cmd, next, err := DecodeNext(rest)
		if err != nil {
			var de *DecodeError
			if errors.As(err, &de) {
				de.Offset += len(payload) - len(rest)
			}
			return cmds, err
		}
		cmds = append(cmds, cmd)
		rest = next
	}
	return cmds, nil
}

// DecodeNext parses one command from the front of b and returns the rest.
func DecodeNext(b []byte) (models.Command, []byte, error) {
	d := decoder{start: b}
	cmd, rest, err := d.command(b)
	if err != nil {
		return nil, b, err
	}
	return cmd, rest, nil
}

type decoder struct {
	start []byte
}

func (d decoder) fail(at []byte, reason string, err error) *DecodeError {
	return &DecodeError{Offset: len(d.start) - len(at), Reason: reason, Err: err}
}

func (d decoder) command(b []byte) (models.Command, []byte, error) {
	if len(b) == 0 {
		return nil, b, d.fail(b, "empty payload", msgp.ErrShortBytes)
	}

	switch msgp.NextType(b) {
	case msgp.StrType:
		name, rest, err := msgp.ReadStringBytes(b)
		if err != nil {
			return nil, b, d.fail(b, "read variant name", err)
		}
		switch models.Kind(name) {
		case models.KindList:
			return models.List{}, rest, nil
		case models.KindPersist:
			return models.Persist{}, rest, nil
		case models.KindAdd, models.KindRemove:
			return nil, b, d.fail(b, fmt.Sprintf("variant %q requires fields", name), nil)
		}
		return nil, b, d.fail(b, fmt.Sprintf("unknown variant %q", name), nil)

	case msgp.MapType:
		sz, rest, err := msgp.ReadMapHeaderBytes(b)
		if err != nil {
			return nil, b, d.fail(b, "read variant map", err)
		}
		if sz != 1 {
			return nil, b, d.fail(b, fmt.Sprintf("variant map has %d entries, want 1", sz), nil)
		}
		name, body, err := msgp.ReadStringBytes(rest)
		if err != nil {
			return nil, b, d.fail(rest, "read variant name", err)
		}
		switch models.Kind(name) {
		case models.KindAdd:
			f, rest, err := d.fields(body, "key", "value")
			if err != nil {
				return nil, b, err
			}
			return models.Add{Key: f[0], Value: f[1]}, rest, nil
		case models.KindRemove:
			f, rest, err := d.fields(body, "key")
			if err != nil {
				return nil, b, err
			}
			return models.Remove{Key: f[0]}, rest, nil
		case models.KindList, models.KindPersist:
			rest, err := d.unitBody(body)
			if err != nil {
				return nil, b, err
			}
			if models.Kind(name) == models.KindList {
				return models.List{}, rest, nil
			}
			return models.Persist{}, rest, nil
		}
		return nil, b, d.fail(rest, fmt.Sprintf("unknown variant %q", name), nil)
	}

	return nil, b, d.fail(b, fmt.Sprintf("unexpected %s at top level", msgp.NextType(b)), nil)
}

// fields reads the string fields of a struct variant, given in declaration
// order, either as an array or as a name-keyed map.
func (d decoder) fields(b []byte, names ...string) ([]string, []byte, error) {
	out := make([]string, len(names))

	switch msgp.NextType(b) {
	case msgp.ArrayType:
		sz, rest, err := msgp.ReadArrayHeaderBytes(b)
		if err != nil {
			return nil, b, d.fail(b, "read field array", err)
		}
		if int(sz) != len(names) {
			return nil, b, d.fail(b, fmt.Sprintf("field array has %d elements, want %d", sz, len(names)), nil)
		}
		for i, name := range names {
			out[i], rest, err = msgp.ReadStringBytes(rest)
			if err != nil {
				return nil, b, d.fail(rest, "read field "+name, err)
			}
		}
		return out, rest, nil

	case msgp.MapType:
		sz, rest, err := msgp.ReadMapHeaderBytes(b)
		if err != nil {
			return nil, b, d.fail(b, "read field map", err)
		}
		if int(sz) != len(names) {
			return nil, b, d.fail(b, fmt.Sprintf("field map has %d entries, want %d", sz, len(names)), nil)
		}
		seen := make([]bool, len(names))
		for range sz {
			var field, val string
			at := rest
			field, rest, err = msgp.ReadStringBytes(rest)
			if err != nil {
				return nil, b, d.fail(at, "read field name", err)
			}
			idx := slices.Index(names, field)
			if idx < 0 || seen[idx] {
				return nil, b, d.fail(at, fmt.Sprintf("unexpected field %q", field), nil)
			}
			val, rest, err = msgp.ReadStringBytes(rest)
			if err != nil {
				return nil, b, d.fail(at, "read field "+field, err)
			}
			out[idx] = val
			seen[idx] = true
		}
		return out, rest, nil
	}

	return nil, b, d.fail(b, fmt.Sprintf("unexpected %s for variant fields", msgp.NextType(b)), nil)
}

// unitBody consumes the value of a field-less variant written in map form.
func (d decoder) unitBody(b []byte) ([]byte, error) {
	switch msgp.NextType(b) {
	case msgp.NilType:
		rest, err := msgp.ReadNilBytes(b)
		if err != nil {
			return b, d.fail(b, "read unit variant", err)
		}
		return rest, nil
	case msgp.ArrayType:
		sz, rest, err := msgp.ReadArrayHeaderBytes(b)
		if err != nil {
			return b, d.fail(b, "read unit variant", err)
		}
		if sz != 0 {
			return b, d.fail(b, fmt.Sprintf("unit variant carries %d fields", sz), nil)
		}
		return rest, nil
	}
	return b, d.fail(b, fmt.Sprintf("unexpected %s for unit variant", msgp.NextType(b)), nil)
}
