package claims

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-sdvc-sdk/credential/common/sderr"
)

func aliceTree() Tree {
	return NewTree(
		F("id", String("did:example:alice")),
		F("name", String("Alice")),
		F("age", Int(30)),
		F("degree", Object(
			F("type", String("BSc")),
			F("name", String("CS")),
		)),
		F("courses", Strings("Math", "Physics")),
	)
}

func TestParsePath(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Path
	}{
		{name: "single field", in: "name", want: P("name")},
		{name: "nested field", in: "degree.name", want: P("degree", "name")},
		{name: "array index", in: "courses[1]", want: P("courses", 1)},
		{name: "mixed", in: "a.b[0][2].c", want: P("a", "b", 0, 2, "c")},
		{name: "escaped dot", in: `a\.b`, want: P("a.b")},
		{name: "leading index", in: "[0]", want: P(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePath(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestParsePath_Malformed(t *testing.T) {
	for _, in := range []string{"", ".", "a.", ".a", "a..b", "a[", "a[x]", "a[-1]", "a[]", "a]", "a[0]b", "a.[0]", `a\`} {
		t.Run(in, func(t *testing.T) {
			_, err := ParsePath(in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, sderr.ErrPathMalformed), "got %v", err)
		})
	}
}

func TestResolve(t *testing.T) {
	tree := aliceTree()

	v, err := ResolveString(tree, "degree.name")
	require.NoError(t, err)
	assert.Equal(t, String("CS"), v)

	v, err = ResolveString(tree, "courses[1]")
	require.NoError(t, err)
	assert.Equal(t, String("Physics"), v)

	v, err = ResolveString(tree, "degree")
	require.NoError(t, err)
	assert.Equal(t, KindObject, v.Kind())
}

func TestResolve_Errors(t *testing.T) {
	tree := aliceTree()
	tests := []struct {
		path string
		kind sderr.Kind
	}{
		{"missing", sderr.KindPathNotFound},
		{"degree.gpa", sderr.KindPathNotFound},
		{"courses[5]", sderr.KindPathNotFound},
		{"name[0]", sderr.KindPathTypeMismatch},
		{"courses.first", sderr.KindPathTypeMismatch},
		{"[0]", sderr.KindPathTypeMismatch},
		{"courses[one]", sderr.KindPathMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := ResolveString(tree, tt.path)
			require.Error(t, err)
			assert.Equal(t, tt.kind, sderr.KindOf(err))
		})
	}
}

func TestSetConcealed_LeavesOriginalUntouched(t *testing.T) {
	tree := aliceTree()
	before := tree.Clone()

	out, err := SetConcealed(tree, P("degree", "name"))
	require.NoError(t, err)

	assert.True(t, tree.Equal(before))
	v, err := Resolve(out, P("degree", "name"))
	require.NoError(t, err)
	assert.Equal(t, KindConcealed, v.Kind())
	v, err = Resolve(out, P("degree", "type"))
	require.NoError(t, err)
	assert.Equal(t, String("BSc"), v)
}

func TestSetConcealed_Subtree(t *testing.T) {
	out, err := SetConcealed(aliceTree(), P("degree"))
	require.NoError(t, err)

	var concealed []string
	require.NoError(t, Walk(out, func(p Path, v Value) error {
		if v.Kind() == KindConcealed {
			concealed = append(concealed, p.String())
		}
		return nil
	}))
	assert.Equal(t, []string{"degree.type", "degree.name"}, concealed)
}

func TestSetConcealed_UnknownPath(t *testing.T) {
	_, err := SetConcealed(aliceTree(), P("nope"))
	assert.True(t, errors.Is(err, sderr.ErrPathNotFound))
}

func TestWalk_Order(t *testing.T) {
	tree := NewTree(
		F("id", String("x")),
		F("empty", Object()),
		F("list", Array()),
		F("n", Null()),
		F("nested", Array(Object(F("k", Bool(true))))),
	)
	var paths []string
	require.NoError(t, Walk(tree, func(p Path, _ Value) error {
		paths = append(paths, p.String())
		return nil
	}))
	assert.Equal(t, []string{"id", "empty", "list", "n", "nested[0].k"}, paths)
}

func TestAssemble(t *testing.T) {
	tree, err := Assemble([]Entry{
		{Path: P("id"), Value: String("did:example:alice")},
		{Path: P("name"), Value: String("Alice")},
		{Path: P("degree", "type"), Value: String("BSc")},
		{Path: P("courses", 1), Value: String("Physics")},
	})
	require.NoError(t, err)

	raw, err := tree.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"did:example:alice","name":"Alice","degree":{"type":"BSc"},"courses":["Physics"]}`, string(raw))
}

func TestAssemble_Conflict(t *testing.T) {
	_, err := Assemble([]Entry{
		{Path: P("a"), Value: String("x")},
		{Path: P("a", "b"), Value: String("y")},
	})
	assert.True(t, errors.Is(err, sderr.ErrPathTypeMismatch))
}

func TestJSON_KeepsOrder(t *testing.T) {
	in := `{"id":"did:example:1","z":1,"a":{"y":"s","b":[1,2.5,"3",true,null,{},[]]}}`
	v, err := ParseJSON([]byte(in))
	require.NoError(t, err)

	fields := v.Fields()
	require.Len(t, fields, 3)
	assert.Equal(t, "z", fields[1].Key)
	assert.Equal(t, "a", fields[2].Key)

	out, err := v.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, in, string(out))
}

func TestJSON_NumberAndStringDiffer(t *testing.T) {
	v, err := ParseJSON([]byte(`{"a":"42","b":42}`))
	require.NoError(t, err)
	a, _ := v.Get("a")
	b, _ := v.Get("b")
	assert.Equal(t, KindString, a.Kind())
	assert.Equal(t, KindNumber, b.Kind())
	assert.False(t, a.Equal(b))
}

func TestJSON_ConcealedMarker(t *testing.T) {
	v := Object(F("secret", Concealed()))
	raw, err := v.MarshalJSON()
	require.NoError(t, err)
	back, err := ParseJSON(raw)
	require.NoError(t, err)
	assert.True(t, v.Equal(back))
}

func TestParseTreeJSON_RejectsNonObject(t *testing.T) {
	_, err := ParseTreeJSON([]byte(`[1,2]`))
	assert.Error(t, err)
	_, err = ParseTreeJSON([]byte(`{"a":`))
	assert.Error(t, err)
}

func TestTree_ToMap(t *testing.T) {
	m, err := aliceTree().ToMap()
	require.NoError(t, err)
	assert.Equal(t, "Alice", m["name"])
	assert.Equal(t, []interface{}{"Math", "Physics"}, m["courses"])
}
