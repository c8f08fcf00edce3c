// Package pattern parses byte signatures with wildcards and locates them in
// module images.
package pattern

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"procmem/process"
)

// Pattern is a byte signature. Mask[i] is 0xFF where Bytes[i] must match and
// 0x00 where any byte is accepted.
type Pattern struct {
	Bytes []byte
	Mask  []byte
}

// Parse parses a signature such as "48 8B 05 ?? ?? ?? ?? C3". Tokens are
// separated by whitespace or commas; each is exactly two hex digits or a
// wildcard ("?" or "??").
func Parse(text string) (Pattern, error) {
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})

	if len(tokens) == 0 {
		return Pattern{}, fmt.Errorf("%w: empty signature", process.ErrMalformedPattern)
	}

	p := Pattern{
		Bytes: make([]byte, 0, len(tokens)),
		Mask:  make([]byte, 0, len(tokens)),
	}

	for i, token := range tokens {
		if token == "?" || token == "??" {
			p.Bytes = append(p.Bytes, 0)
			p.Mask = append(p.Mask, 0)
			continue
		}

		if len(token) != 2 {
			return Pattern{}, fmt.Errorf("%w: token %d '%s' is not a byte", process.ErrMalformedPattern, i, token)
		}

		val, err := strconv.ParseUint(token, 16, 8)
		if err != nil {
			return Pattern{}, fmt.Errorf("%w: token %d '%s' is not hex", process.ErrMalformedPattern, i, token)
		}

		p.Bytes = append(p.Bytes, byte(val))
		p.Mask = append(p.Mask, 0xFF)
	}

	return p, nil
}

// MustParse is like Parse but panics on error. For signatures known at compile time.
func MustParse(text string) Pattern {
	p, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return p
}

// Len returns the number of bytes the pattern spans
func (p Pattern) Len() int {
	return len(p.Bytes)
}

// Exact reports whether the pattern has no wildcards
func (p Pattern) Exact() bool {
	return bytes.IndexByte(p.Mask, 0) < 0
}

// Match reports whether the pattern matches data at its start.
func (p Pattern) Match(data []byte) bool {
	if len(data) < len(p.Bytes) {
		return false
	}
	for j := range p.Bytes {
		if p.Mask[j] == 0 {
			continue
		}
		if data[j] != p.Bytes[j] {
			return false
		}
	}
	return true
}

// Find returns the lowest offset in data where the pattern matches, or -1.
func (p Pattern) Find(data []byte) int {
	if len(p.Bytes) == 0 || len(data) < len(p.Bytes) {
		return -1
	}

	if p.Exact() {
		return bytes.Index(data, p.Bytes)
	}

	for i := 0; i <= len(data)-len(p.Bytes); i++ {
		if p.Match(data[i:]) {
			return i
		}
	}
	return -1
}

// FindAll returns every offset in data where the pattern matches, ascending.
// Matches may overlap.
func (p Pattern) FindAll(data []byte) []int {
	var matches []int
	if len(p.Bytes) == 0 {
		return matches
	}

	for i := 0; i <= len(data)-len(p.Bytes); i++ {
		if p.Match(data[i:]) {
			matches = append(matches, i)
		}
	}
	return matches
}

func (p Pattern) String() string {
	var sb strings.Builder
	for i := range p.Bytes {
		if i > 0 {
			sb.WriteString(" ")
		}
		if p.Mask[i] == 0 {
			sb.WriteString("??")
		} else {
			fmt.Fprintf(&sb, "%02X", p.Bytes[i])
		}
	}
	return sb.String()
}
