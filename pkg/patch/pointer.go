package patch

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// AppendMarker designates the position one past the last array element.
const AppendMarker = "-"

// Pointer is a parsed RFC 6901 JSON pointer.
// The empty pointer designates the document root.
type Pointer []string

var (
	unescaper = strings.NewReplacer("~1", "/", "~0", "~")
	escaper   = strings.NewReplacer("~", "~0", "/", "~1")
)

// ParsePointer parses a "/"-delimited pointer string.
func ParsePointer(s string) (Pointer, error) {
	if s == "" {
		return Pointer{}, nil
	}
	if s[0] != '/' {
		return nil, fmt.Errorf("%w: pointer %q must start with '/'", ErrInvalidPath, s)
	}
	parts := strings.Split(s[1:], "/")
	for i, part := range parts {
		parts[i] = unescaper.Replace(part)
	}
	return Pointer(parts), nil
}

// MustPointer is like ParsePointer but panics on malformed input.
func MustPointer(s string) Pointer {
	p, err := ParsePointer(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Pointer) String() string {
	var b strings.Builder
	for _, tok := range p {
		b.WriteByte('/')
		b.WriteString(escaper.Replace(tok))
	}
	return b.String()
}

// Last returns the final token, or "" for the root.
func (p Pointer) Last() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Parent returns the pointer without its final token.
func (p Pointer) Parent() Pointer {
	if len(p) == 0 {
		return p
	}
	return p[:len(p)-1]
}

// With returns a copy of p with its final token replaced.
func (p Pointer) With(last string) Pointer {
	out := make(Pointer, len(p))
	copy(out, p)
	if len(out) > 0 {
		out[len(out)-1] = last
	}
	return out
}

// Append returns a copy of p extended with tok.
func (p Pointer) Append(tok string) Pointer {
	out := make(Pointer, len(p), len(p)+1)
	copy(out, p)
	return append(out, tok)
}

// Equal reports whether both pointers have the same tokens.
func (p Pointer) Equal(q Pointer) bool {
	if len(p) != len(q) {
		return false
	}
	for i := range p {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix is p itself or one of its ancestors.
func (p Pointer) HasPrefix(prefix Pointer) bool {
	if len(prefix) > len(p) {
		return false
	}
	return p[:len(prefix)].Equal(prefix)
}

// Ancestors returns every proper, non-root ancestor of p, shortest first.
func (p Pointer) Ancestors() []Pointer {
	if len(p) < 2 {
		return nil
	}
	out := make([]Pointer, 0, len(p)-1)
	for i := 1; i < len(p); i++ {
		out = append(out, p[:i])
	}
	return out
}

// maxIndex stands for an index token too large for an int. No array
// reaches it, so it always reads as out of bounds.
const maxIndex = math.MaxInt

// parseIndex parses an array index token: a non-negative decimal integer
// without leading zeros.
func parseIndex(tok string) (int, bool) {
	if tok == "" || (len(tok) > 1 && tok[0] == '0') {
		return 0, false
	}
	for i := 0; i < len(tok); i++ {
		if tok[i] < '0' || tok[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(tok)
	if errors.Is(err, strconv.ErrRange) {
		return maxIndex, true
	}
	if err != nil {
		return 0, false
	}
	return n, true
}

// isIndex reports whether tok reads as an array index.
func isIndex(tok string) bool {
	_, ok := parseIndex(tok)
	return ok
}
