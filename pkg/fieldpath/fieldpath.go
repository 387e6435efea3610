// Package fieldpath implements the structured "$.a[0].b" address grammar
// used to locate values inside the runtime tree and to anchor Issue records
// to a specific location.
package fieldpath

import (
	"fmt"
	"strconv"
	"strings"
)

// Segment is one step of a field path: either a string key or an index.
type Segment struct {
	Key      string
	Index    int
	IsIndex  bool
}

// Path is an ordered sequence of segments.
type Path []Segment

// ErrorKind classifies a parse failure.
type ErrorKind string

const (
	InvalidStart   ErrorKind = "InvalidStart"
	UnexpectedEnd  ErrorKind = "UnexpectedEnd"
	InvalidIndex   ErrorKind = "InvalidIndex"
	MissingDot     ErrorKind = "MissingDot"
	InvalidKey     ErrorKind = "InvalidKey"
	UnexpectedChar ErrorKind = "UnexpectedChar"
)

// ParseError reports a field-path grammar violation.
type ParseError struct {
	Kind ErrorKind
	Pos  int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("fieldpath: %s at %d: %s", e.Kind, e.Pos, e.Msg)
}

func isIdentByte(b byte) bool {
	return b == '_' || b == '-' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// Parse parses a field-path string per spec §4.B's grammar:
// optional leading "$", then a sequence of ".<ident>" and "[<digits>]"
// segments. An input with no "$" and no opening bracket begins with a bare
// identifier, equivalent to "$.<id>".
func Parse(s string) (Path, error) {
	if s == "" {
		return nil, &ParseError{Kind: UnexpectedEnd, Pos: 0, Msg: "empty path"}
	}

	i := 0
	n := len(s)
	var path Path

	if s[0] == '$' {
		i = 1
		if i == n {
			return path, nil // bare "$" is the root
		}
	} else if s[0] != '.' && s[0] != '[' {
		// bare identifier form: equivalent to "$.<id>"
		start := i
		for i < n && isIdentByte(s[i]) {
			i++
		}
		if i == start {
			return nil, &ParseError{Kind: InvalidStart, Pos: i, Msg: "expected identifier"}
		}
		path = append(path, Segment{Key: s[start:i]})
	} else if s[0] == '[' {
		return nil, &ParseError{Kind: InvalidStart, Pos: 0, Msg: "path must start with '$', '.', or an identifier"}
	}

	for i < n {
		switch s[i] {
		case '.':
			i++
			start := i
			for i < n && isIdentByte(s[i]) {
				i++
			}
			if i == start {
				return nil, &ParseError{Kind: InvalidKey, Pos: start, Msg: "expected key after '.'"}
			}
			path = append(path, Segment{Key: s[start:i]})
		case '[':
			i++
			start := i
			for i < n && s[i] >= '0' && s[i] <= '9' {
				i++
			}
			if i == start {
				return nil, &ParseError{Kind: InvalidIndex, Pos: start, Msg: "expected digits inside '['"}
			}
			idxStr := s[start:i]
			if i == n || s[i] != ']' {
				return nil, &ParseError{Kind: InvalidIndex, Pos: i, Msg: "missing closing ']'"}
			}
			i++
			idx, err := strconv.Atoi(idxStr)
			if err != nil {
				return nil, &ParseError{Kind: InvalidIndex, Pos: start, Msg: "index not a valid integer"}
			}
			path = append(path, Segment{Index: idx, IsIndex: true})
		default:
			if i > 0 && s[i-1] == ']' {
				return nil, &ParseError{Kind: MissingDot, Pos: i, Msg: "expected '.' or '[' after ']'"}
			}
			return nil, &ParseError{Kind: UnexpectedChar, Pos: i, Msg: fmt.Sprintf("unexpected character %q", s[i])}
		}
	}

	return path, nil
}

// Render returns the "$"-prefixed textual form of the path.
func (p Path) Render() string {
	var b strings.Builder
	b.WriteByte('$')
	for _, seg := range p {
		if seg.IsIndex {
			fmt.Fprintf(&b, "[%d]", seg.Index)
		} else {
			b.WriteByte('.')
			b.WriteString(seg.Key)
		}
	}
	return b.String()
}

// Equal reports whether two paths address the same location.
func Equal(a, b Path) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer via Render.
func (p Path) String() string {
	return p.Render()
}
