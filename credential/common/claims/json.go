package claims

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/pilacorp/go-sdvc-sdk/credential/common/jsonmap"
)

// concealedMarkerKey renders a concealment marker in JSON.
const concealedMarkerKey = "@concealed"

// ParseJSON decodes a JSON document into a Value, keeping object key order.
// The object {"@concealed":true} decodes to a concealment marker.
func ParseJSON(data []byte) (Value, error) {
	if !gjson.ValidBytes(data) {
		return Value{}, fmt.Errorf("invalid JSON claim document")
	}
	return fromResult(gjson.ParseBytes(data)), nil
}

// ParseTreeJSON decodes a JSON object into a Tree.
func ParseTreeJSON(data []byte) (Tree, error) {
	v, err := ParseJSON(data)
	if err != nil {
		return Tree{}, err
	}
	return TreeOf(v)
}

func fromResult(r gjson.Result) Value {
	switch r.Type {
	case gjson.String:
		return String(r.String())
	case gjson.Number:
		return Number(json.Number(r.Raw))
	case gjson.True:
		return Bool(true)
	case gjson.False:
		return Bool(false)
	case gjson.JSON:
		if r.IsArray() {
			arr := r.Array()
			items := make([]Value, len(arr))
			for i, it := range arr {
				items[i] = fromResult(it)
			}
			return Value{kind: KindArray, items: items}
		}
		obj := Value{kind: KindObject}
		r.ForEach(func(k, v gjson.Result) bool {
			obj = obj.with(k.String(), fromResult(v))
			return true
		})
		if isConcealedMarker(obj) {
			return Concealed()
		}
		return obj
	default:
		return Null()
	}
}

func isConcealedMarker(v Value) bool {
	if len(v.fields) != 1 || v.fields[0].Key != concealedMarkerKey {
		return false
	}
	b, ok := v.fields[0].Value.AsBool()
	return ok && b
}

// MarshalJSON writes object keys in insertion order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := ParseJSON(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v Value) writeJSON(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindString:
		b, err := json.Marshal(v.text)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindNumber:
		buf.WriteString(v.text)
	case KindBool:
		if v.flag {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindConcealed:
		buf.WriteString(`{"` + concealedMarkerKey + `":true}`)
	case KindArray:
		buf.WriteByte('[')
		for i, it := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := it.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, f := range v.fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, err := json.Marshal(f.Key)
			if err != nil {
				return err
			}
			buf.Write(k)
			buf.WriteByte(':')
			if err := f.Value.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unknown claim kind %d", v.kind)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Tree) MarshalJSON() ([]byte, error) {
	return t.Root().MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Tree) UnmarshalJSON(data []byte) error {
	parsed, err := ParseTreeJSON(data)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ToMap converts the tree to plain Go values (map[string]interface{},
// []interface{}, json.Number, string, bool, nil) for libraries that
// expect decoded JSON.
func (t Tree) ToMap() (map[string]interface{}, error) {
	raw, err := t.MarshalJSON()
	if err != nil {
		return nil, err
	}
	m, err := jsonmap.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode claim tree: %w", err)
	}
	return m, nil
}
