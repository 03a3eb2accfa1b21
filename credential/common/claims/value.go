// Package claims models a credential subject as an ordered claim tree and
// addresses its nodes with dotted/bracketed paths.
package claims

import (
	"encoding/json"
	"strconv"
)

// Kind is the variant tag of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindObject
	KindArray
	KindConcealed
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindConcealed:
		return "concealed"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Field is a key/value pair of an object. Object fields keep the order in
// which they were declared.
type Field struct {
	Key   string
	Value Value
}

// F is shorthand for a Field literal.
func F(key string, v Value) Field {
	return Field{Key: key, Value: v}
}

// Value is a claim value: a primitive, an object, an array or a
// concealment marker. The zero Value is null.
type Value struct {
	kind   Kind
	text   string
	flag   bool
	fields []Field
	items  []Value
}

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, text: s} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, flag: b} }

// Int returns a number value holding an integer.
func Int(i int64) Value { return Value{kind: KindNumber, text: strconv.FormatInt(i, 10)} }

// Float returns a number value holding a float in its shortest form.
func Float(f float64) Value {
	return Value{kind: KindNumber, text: strconv.FormatFloat(f, 'g', -1, 64)}
}

// Number returns a number value keeping the literal text of n.
func Number(n json.Number) Value { return Value{kind: KindNumber, text: n.String()} }

// Concealed returns the concealment marker.
func Concealed() Value { return Value{kind: KindConcealed} }

// Object returns an object value with the given fields, in order. A repeated
// key replaces the earlier value but keeps the earlier position.
func Object(fields ...Field) Value {
	v := Value{kind: KindObject, fields: make([]Field, 0, len(fields))}
	for _, f := range fields {
		v = v.with(f.Key, f.Value)
	}
	return v
}

// Array returns an array value.
func Array(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindArray, items: cp}
}

// Strings is a convenience for an array of strings.
func Strings(ss ...string) Value {
	items := make([]Value, len(ss))
	for i, s := range ss {
		items[i] = String(s)
	}
	return Value{kind: KindArray, items: items}
}

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// IsContainer reports whether v is an object or an array.
func (v Value) IsContainer() bool { return v.kind == KindObject || v.kind == KindArray }

// IsLeaf reports whether v is a leaf of the canonical traversal: a
// primitive, a concealment marker or an empty container.
func (v Value) IsLeaf() bool {
	switch v.kind {
	case KindObject:
		return len(v.fields) == 0
	case KindArray:
		return len(v.items) == 0
	default:
		return true
	}
}

// Text returns the string payload of a string value or the literal text of
// a number value.
func (v Value) Text() string { return v.text }

// AsString returns the payload of a string value.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.text, true
}

// AsBool returns the payload of a bool value.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.flag, true
}

// Len returns the number of fields or items of a container.
func (v Value) Len() int {
	switch v.kind {
	case KindObject:
		return len(v.fields)
	case KindArray:
		return len(v.items)
	default:
		return 0
	}
}

// Fields returns a copy of the object's fields.
func (v Value) Fields() []Field {
	cp := make([]Field, len(v.fields))
	copy(cp, v.fields)
	return cp
}

// Items returns a copy of the array's items.
func (v Value) Items() []Value {
	cp := make([]Value, len(v.items))
	copy(cp, v.items)
	return cp
}

// Get looks up a field of an object.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	for _, f := range v.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Index returns an item of an array.
func (v Value) Index(i int) (Value, bool) {
	if v.kind != KindArray || i < 0 || i >= len(v.items) {
		return Value{}, false
	}
	return v.items[i], true
}

// with returns a copy of the object with key set to val.
func (v Value) with(key string, val Value) Value {
	out := Value{kind: KindObject, fields: make([]Field, len(v.fields), len(v.fields)+1)}
	copy(out.fields, v.fields)
	for i := range out.fields {
		if out.fields[i].Key == key {
			out.fields[i].Value = val
			return out
		}
	}
	out.fields = append(out.fields, Field{Key: key, Value: val})
	return out
}

// withItem returns a copy of the array with item i replaced.
func (v Value) withItem(i int, val Value) Value {
	out := Value{kind: KindArray, items: make([]Value, len(v.items))}
	copy(out.items, v.items)
	out.items[i] = val
	return out
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindObject:
		out := Value{kind: KindObject, fields: make([]Field, len(v.fields))}
		for i, f := range v.fields {
			out.fields[i] = Field{Key: f.Key, Value: f.Value.Clone()}
		}
		return out
	case KindArray:
		out := Value{kind: KindArray, items: make([]Value, len(v.items))}
		for i, it := range v.items {
			out.items[i] = it.Clone()
		}
		return out
	default:
		return v
	}
}

// Equal reports deep equality, including object key order.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString, KindNumber:
		return v.text == o.text
	case KindBool:
		return v.flag == o.flag
	case KindObject:
		if len(v.fields) != len(o.fields) {
			return false
		}
		for i := range v.fields {
			if v.fields[i].Key != o.fields[i].Key || !v.fields[i].Value.Equal(o.fields[i].Value) {
				return false
			}
		}
		return true
	case KindArray:
		if len(v.items) != len(o.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(o.items[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}
