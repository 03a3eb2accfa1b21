package claims

import (
	"errors"
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/pilacorp/go-sdvc-sdk/credential/common/sderr"
)

// SubjectIDKey is the root key holding the subject identifier.
const SubjectIDKey = "id"

// Tree is a claim tree: an object value at the root.
type Tree struct {
	root Value
}

// NewTree returns a tree whose root object has the given fields.
func NewTree(fields ...Field) Tree {
	return Tree{root: Object(fields...)}
}

// TreeOf wraps an object value as a tree.
func TreeOf(v Value) (Tree, error) {
	if v.Kind() != KindObject {
		return Tree{}, fmt.Errorf("claim tree root must be an object, got %s", v.Kind())
	}
	return Tree{root: v}, nil
}

// Root returns the root object.
func (t Tree) Root() Value {
	if t.root.kind != KindObject {
		return Object()
	}
	return t.root
}

// SubjectID returns the subject identifier when present as a string.
func (t Tree) SubjectID() (string, bool) {
	v, ok := t.Root().Get(SubjectIDKey)
	if !ok {
		return "", false
	}
	return v.AsString()
}

// Clone returns a deep copy of the tree.
func (t Tree) Clone() Tree { return Tree{root: t.Root().Clone()} }

// Equal reports deep equality of two trees.
func (t Tree) Equal(o Tree) bool { return t.Root().Equal(o.Root()) }

// Resolve returns the node addressed by path.
func Resolve(t Tree, path Path) (Value, error) {
	if len(path) == 0 {
		return Value{}, sderr.PathErr(sderr.KindPathMalformed, "resolve", "", errEmptyPath)
	}
	cur := t.Root()
	for i, seg := range path {
		next, err := step(cur, seg)
		if err != nil {
			return Value{}, sderr.PathErr(sderr.KindOf(err), "resolve", path.String(), fmt.Errorf("segment %d: %w", i, errors.Unwrap(err)))
		}
		cur = next
	}
	return cur, nil
}

// ResolveString parses s and resolves it.
func ResolveString(t Tree, s string) (Value, error) {
	p, err := ParsePath(s)
	if err != nil {
		return Value{}, err
	}
	return Resolve(t, p)
}

func step(cur Value, seg Segment) (Value, error) {
	if seg.IsIndex {
		if cur.kind != KindArray {
			return Value{}, sderr.New(sderr.KindPathTypeMismatch, "", fmt.Errorf("index [%d] applied to %s", seg.Index, cur.kind))
		}
		v, ok := cur.Index(seg.Index)
		if !ok {
			return Value{}, sderr.New(sderr.KindPathNotFound, "", fmt.Errorf("index [%d] out of range (len %d)", seg.Index, len(cur.items)))
		}
		return v, nil
	}
	if cur.kind != KindObject {
		return Value{}, sderr.New(sderr.KindPathTypeMismatch, "", fmt.Errorf("field %q applied to %s", seg.Name, cur.kind))
	}
	v, ok := cur.Get(seg.Name)
	if !ok {
		return Value{}, sderr.New(sderr.KindPathNotFound, "", fmt.Errorf("no field %q", seg.Name))
	}
	return v, nil
}

// SetConcealed returns a copy of t in which the node at path is concealed.
// Concealing a container conceals every leaf beneath it; empty containers
// become a single concealment marker. t is left untouched.
func SetConcealed(t Tree, path Path) (Tree, error) {
	if _, err := Resolve(t, path); err != nil {
		return Tree{}, err
	}
	root := replaceAt(t.Root(), path, func(v Value) Value { return concealAll(v) })
	return Tree{root: root}, nil
}

func concealAll(v Value) Value {
	switch {
	case v.kind == KindObject && len(v.fields) > 0:
		out := Value{kind: KindObject, fields: make([]Field, len(v.fields))}
		for i, f := range v.fields {
			out.fields[i] = Field{Key: f.Key, Value: concealAll(f.Value)}
		}
		return out
	case v.kind == KindArray && len(v.items) > 0:
		out := Value{kind: KindArray, items: make([]Value, len(v.items))}
		for i, it := range v.items {
			out.items[i] = concealAll(it)
		}
		return out
	default:
		return Concealed()
	}
}

// replaceAt rebuilds the spine from cur down to path, copying only the
// containers on the way. path must resolve.
func replaceAt(cur Value, path Path, fn func(Value) Value) Value {
	if len(path) == 0 {
		return fn(cur)
	}
	seg := path[0]
	if seg.IsIndex {
		return cur.withItem(seg.Index, replaceAt(cur.items[seg.Index], path[1:], fn))
	}
	child, _ := cur.Get(seg.Name)
	return cur.with(seg.Name, replaceAt(child, path[1:], fn))
}

// Entry is a leaf value at a path.
type Entry struct {
	Path  Path
	Value Value
}

// Walk visits every leaf of t in canonical order: object fields in
// insertion order, array items by index. Empty containers are leaves.
func Walk(t Tree, fn func(Path, Value) error) error {
	return walk(nil, t.Root(), fn, true)
}

func walk(prefix Path, v Value, fn func(Path, Value) error, isRoot bool) error {
	if v.IsLeaf() && !isRoot {
		return fn(prefix, v)
	}
	switch v.kind {
	case KindObject:
		for _, f := range v.fields {
			if err := walk(prefix.Child(Name(f.Key)), f.Value, fn, false); err != nil {
				return err
			}
		}
	case KindArray:
		for i, it := range v.items {
			if err := walk(prefix.Child(Idx(i)), it, fn, false); err != nil {
				return err
			}
		}
	}
	return nil
}

// LeafPaths lists the leaves at or beneath path, in canonical order.
func LeafPaths(t Tree, path Path) ([]Path, error) {
	if _, err := Resolve(t, path); err != nil {
		return nil, err
	}
	var out []Path
	err := Walk(t, func(p Path, _ Value) error {
		if p.HasPrefix(path) {
			out = append(out, p)
		}
		return nil
	})
	return out, err
}

// Assemble rebuilds a tree from a subset of leaves. Objects keep the order
// in which keys first appear; arrays keep the relative order of their
// original indices and are compacted, so a missing item leaves no hole.
func Assemble(entries []Entry) (Tree, error) {
	root := &node{kind: KindObject}
	for _, e := range entries {
		if len(e.Path) == 0 {
			return Tree{}, sderr.PathErr(sderr.KindPathMalformed, "assemble", "", errEmptyPath)
		}
		if err := root.insert(e.Path, e.Value); err != nil {
			return Tree{}, sderr.PathErr(sderr.KindPathTypeMismatch, "assemble", e.Path.String(), err)
		}
	}
	return Tree{root: root.value()}, nil
}

type node struct {
	kind  Kind
	leaf  *Value
	keys  []string
	kids  map[string]*node
	elems map[int]*node
}

func (n *node) insert(path Path, v Value) error {
	if len(path) == 0 {
		if n.kind != 0 || n.leaf != nil {
			if n.leaf == nil {
				return errors.New("leaf collides with a container")
			}
			return errors.New("duplicate leaf")
		}
		n.leaf = &v
		return nil
	}
	seg := path[0]
	want := KindObject
	if seg.IsIndex {
		want = KindArray
	}
	if n.leaf != nil {
		return errors.New("container collides with a leaf")
	}
	if n.kind == 0 {
		n.kind = want
	}
	if n.kind != want {
		return fmt.Errorf("conflicting container kinds %s and %s", n.kind, want)
	}
	var child *node
	if seg.IsIndex {
		if n.elems == nil {
			n.elems = make(map[int]*node)
		}
		child = n.elems[seg.Index]
		if child == nil {
			child = &node{}
			n.elems[seg.Index] = child
		}
	} else {
		if n.kids == nil {
			n.kids = make(map[string]*node)
		}
		child = n.kids[seg.Name]
		if child == nil {
			child = &node{}
			n.kids[seg.Name] = child
			n.keys = append(n.keys, seg.Name)
		}
	}
	return child.insert(path[1:], v)
}

func (n *node) value() Value {
	if n.leaf != nil {
		return *n.leaf
	}
	switch n.kind {
	case KindArray:
		idx := make([]int, 0, len(n.elems))
		for i := range n.elems {
			idx = append(idx, i)
		}
		slices.Sort(idx)
		items := make([]Value, len(idx))
		for j, i := range idx {
			items[j] = n.elems[i].value()
		}
		return Value{kind: KindArray, items: items}
	default:
		fields := make([]Field, len(n.keys))
		for i, k := range n.keys {
			fields[i] = Field{Key: k, Value: n.kids[k].value()}
		}
		return Value{kind: KindObject, fields: fields}
	}
}
