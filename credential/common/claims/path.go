package claims

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pilacorp/go-sdvc-sdk/credential/common/sderr"
)

// Segment is one step of a Path: a field name or a zero-based array index.
type Segment struct {
	Name    string
	Index   int
	IsIndex bool
}

// Name returns a field segment.
func Name(name string) Segment { return Segment{Name: name} }

// Idx returns an index segment.
func Idx(i int) Segment { return Segment{Index: i, IsIndex: true} }

// Path addresses a node of a claim tree.
type Path []Segment

// P builds a Path from field names (string) and indices (int). It panics on
// any other argument type and is meant for literals.
func P(parts ...interface{}) Path {
	p := make(Path, 0, len(parts))
	for _, part := range parts {
		switch v := part.(type) {
		case string:
			p = append(p, Name(v))
		case int:
			p = append(p, Idx(v))
		default:
			panic(fmt.Sprintf("claims: unsupported path part %T", part))
		}
	}
	return p
}

// Child returns a copy of p extended by s.
func (p Path) Child(s Segment) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, s)
}

// Equal reports whether both paths have the same segments.
func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix addresses p or one of its ancestors.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	return p[:len(prefix)].Equal(prefix)
}

// String renders the textual form, e.g. "degree.name" or "courses[1]".
// Field names containing '.', '[', ']' or '\' are escaped with '\'.
func (p Path) String() string {
	var sb strings.Builder
	for i, s := range p {
		if s.IsIndex {
			sb.WriteByte('[')
			sb.WriteString(strconv.Itoa(s.Index))
			sb.WriteByte(']')
			continue
		}
		if i > 0 {
			sb.WriteByte('.')
		}
		for _, r := range s.Name {
			switch r {
			case '.', '[', ']', '\\':
				sb.WriteByte('\\')
			}
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

var (
	errEmptyPath    = errors.New("path is empty")
	errEmptyField   = errors.New("empty field name")
	errBadIndex     = errors.New("index must be a non-negative integer")
	errUnclosed     = errors.New("unclosed bracket")
	errTrailingEsc  = errors.New("trailing escape character")
	errUnexpectedCh = errors.New("unexpected character after index")
)

// ParsePath parses the textual form of a path.
func ParsePath(s string) (Path, error) {
	malformed := func(err error) error {
		return sderr.PathErr(sderr.KindPathMalformed, "parse path", s, err)
	}
	if s == "" {
		return nil, malformed(errEmptyPath)
	}

	var (
		p       Path
		name    strings.Builder
		inName  bool
		pending bool // a '.' was consumed and a field name must follow
	)
	flush := func() error {
		if !inName {
			if pending {
				return errEmptyField
			}
			return nil
		}
		if name.Len() == 0 {
			return errEmptyField
		}
		p = append(p, Name(name.String()))
		name.Reset()
		inName, pending = false, false
		return nil
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			if i+1 >= len(s) {
				return nil, malformed(errTrailingEsc)
			}
			i++
			name.WriteByte(s[i])
			inName = true
		case '.':
			if err := flush(); err != nil {
				return nil, malformed(err)
			}
			if len(p) == 0 {
				return nil, malformed(errEmptyField)
			}
			pending = true
		case '[':
			if pending && !inName {
				return nil, malformed(errEmptyField)
			}
			if err := flush(); err != nil {
				return nil, malformed(err)
			}
			end := strings.IndexByte(s[i+1:], ']')
			if end < 0 {
				return nil, malformed(errUnclosed)
			}
			digits := s[i+1 : i+1+end]
			idx, err := parseIndex(digits)
			if err != nil {
				return nil, malformed(err)
			}
			p = append(p, Idx(idx))
			i += end + 1
			if i+1 < len(s) && s[i+1] != '.' && s[i+1] != '[' {
				return nil, malformed(errUnexpectedCh)
			}
		case ']':
			return nil, malformed(errBadIndex)
		default:
			name.WriteByte(c)
			inName = true
		}
	}
	if err := flush(); err != nil {
		return nil, malformed(err)
	}
	return p, nil
}

func parseIndex(digits string) (int, error) {
	if digits == "" {
		return 0, errBadIndex
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, errBadIndex
		}
	}
	idx, err := strconv.Atoi(digits)
	if err != nil {
		return 0, errBadIndex
	}
	return idx, nil
}

// MustParsePath is like ParsePath but panics on error.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}
