// Package canonical flattens a claim tree into the ordered leaf statements
// that are signed at issuance and selectively revealed later.
package canonical

import (
	"fmt"

	"github.com/pilacorp/go-sdvc-sdk/credential/common/claims"
)

// Value tags. A leaf value is one tag byte followed by its payload.
const (
	TagString      byte = 's'
	TagNumber      byte = 'n'
	TagBool        byte = 'b'
	TagNull        byte = 'z'
	TagEmptyObject byte = 'o'
	TagEmptyArray  byte = 'a'
	TagConcealed   byte = 0x00
)

const (
	pathSeparator byte = 0x1f
	headerPrefix  byte = 0x1e
)

// Leaf is one canonical statement: a leaf path and its tagged value.
type Leaf struct {
	Path  claims.Path
	Value []byte
}

// Concealed reports whether the leaf carries the concealment sentinel.
func (l Leaf) Concealed() bool {
	return len(l.Value) == 1 && l.Value[0] == TagConcealed
}

// Message returns the signed statement path || 0x1f || value.
func (l Leaf) Message() []byte {
	return LeafMessage(l.Path, l.Value)
}

// LeafMessage builds a statement from a path and an encoded value.
func LeafMessage(path claims.Path, value []byte) []byte {
	p := path.String()
	msg := make([]byte, 0, len(p)+1+len(value))
	msg = append(msg, p...)
	msg = append(msg, pathSeparator)
	return append(msg, value...)
}

// Sequence is the ordered list of leaves of a claim tree.
type Sequence []Leaf

// Messages returns the statements of the sequence in order.
func (s Sequence) Messages() [][]byte {
	out := make([][]byte, len(s))
	for i, l := range s {
		out[i] = l.Message()
	}
	return out
}

// Canonicalize walks the tree in canonical order and encodes every leaf.
// Concealed markers keep their position and encode as the sentinel.
func Canonicalize(t claims.Tree) Sequence {
	var seq Sequence
	// Walk only fails when the callback does.
	_ = claims.Walk(t, func(p claims.Path, v claims.Value) error {
		seq = append(seq, Leaf{Path: p, Value: EncodeValue(v)})
		return nil
	})
	return seq
}

// EncodeValue returns the tagged encoding of a leaf value. "42" and 42
// encode differently.
func EncodeValue(v claims.Value) []byte {
	switch v.Kind() {
	case claims.KindString:
		return append([]byte{TagString}, v.Text()...)
	case claims.KindNumber:
		return append([]byte{TagNumber}, v.Text()...)
	case claims.KindBool:
		if b, _ := v.AsBool(); b {
			return []byte{TagBool, '1'}
		}
		return []byte{TagBool, '0'}
	case claims.KindObject:
		return []byte{TagEmptyObject}
	case claims.KindArray:
		return []byte{TagEmptyArray}
	case claims.KindConcealed:
		return []byte{TagConcealed}
	default:
		return []byte{TagNull}
	}
}

// DecodeValue is the inverse of EncodeValue.
func DecodeValue(b []byte) (claims.Value, error) {
	if len(b) == 0 {
		return claims.Value{}, fmt.Errorf("empty leaf value")
	}
	payload := string(b[1:])
	switch b[0] {
	case TagString:
		return claims.String(payload), nil
	case TagNumber:
		v, err := claims.ParseJSON(b[1:])
		if err == nil && v.Kind() == claims.KindNumber {
			return v, nil
		}
	case TagBool:
		switch payload {
		case "1":
			return claims.Bool(true), nil
		case "0":
			return claims.Bool(false), nil
		}
	case TagNull:
		if payload == "" {
			return claims.Null(), nil
		}
	case TagEmptyObject:
		if payload == "" {
			return claims.Object(), nil
		}
	case TagEmptyArray:
		if payload == "" {
			return claims.Array(), nil
		}
	case TagConcealed:
		if payload == "" {
			return claims.Concealed(), nil
		}
	}
	return claims.Value{}, fmt.Errorf("malformed leaf value with tag 0x%02x", b[0])
}

// HeaderMessage builds a reserved statement for a credential header field.
// The 0x1e prefix keeps it apart from subject leaf statements.
func HeaderMessage(name, value string) []byte {
	msg := make([]byte, 0, 2+len(name)+len(value))
	msg = append(msg, headerPrefix)
	msg = append(msg, name...)
	msg = append(msg, pathSeparator)
	return append(msg, value...)
}
