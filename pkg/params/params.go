// Package params turns the raw argument list into a flag/value mapping.
//
// Arguments are read as positional pairs, "-name value". The walk advances two
// tokens at a time whether or not the current token is a flag, so a stray
// non-flag token between a flag and its value shifts every following pair.
// Callers that build argument lists by hand must keep them well formed.
package params

import (
	"fmt"
	"strings"
)

// Marker prefixes every flag token.
const Marker = "-"

// Parameters maps a flag name (marker stripped) to the token that followed it.
type Parameters map[string]string

// DuplicateFlagError is returned when the same flag appears twice.
type DuplicateFlagError struct {
	Flag string
}

func (e *DuplicateFlagError) Error() string {
	return fmt.Sprintf("duplicate parameter -%s", e.Flag)
}

// MissingValueError is returned when the last token is a flag with no value.
type MissingValueError struct {
	Flag string
}

func (e *MissingValueError) Error() string {
	return fmt.Sprintf("parameter -%s has no value", e.Flag)
}

// Parse walks args with a fixed stride of two. A token starting with Marker is
// a flag and its successor is the value, unconditionally; any other token is
// skipped.
func Parse(args []string) (Parameters, error) {
	p := make(Parameters)
	for i := 0; i < len(args); i += 2 {
		if !strings.HasPrefix(args[i], Marker) {
			continue
		}

		name := strings.TrimPrefix(args[i], Marker)
		if i+1 >= len(args) {
			return nil, &MissingValueError{Flag: name}
		}
		if _, exists := p[name]; exists {
			return nil, &DuplicateFlagError{Flag: name}
		}
		p[name] = args[i+1]
	}
	return p, nil
}

// Has reports whether the flag was given.
func (p Parameters) Has(name string) bool {
	_, ok := p[name]
	return ok
}

// Get returns the flag value or "" when absent.
func (p Parameters) Get(name string) string {
	return p[name]
}

// Lookup returns the flag value and whether it was given.
func (p Parameters) Lookup(name string) (string, bool) {
	v, ok := p[name]
	return v, ok
}

// Bool reports whether the flag value is an affirmative "y", case-insensitively.
// An absent flag is false.
func (p Parameters) Bool(name string) bool {
	return strings.ToLower(p[name]) == "y"
}
