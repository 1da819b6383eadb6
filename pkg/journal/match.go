package journal

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Conjunction is a group of terms that must all match, except that terms
// for the same field are alternatives.
type Conjunction [][]byte

// Disjunction is satisfied when any of its conjunctions is.
type Disjunction []Conjunction

// Filter is the match expression of a Reader: every disjunction must be
// satisfied. The zero value is the empty filter, which matches everything.
//
// Terms accumulate into the open conjunction. AddDisjunction closes it so
// the next term starts an alternative; AddConjunction closes the
// disjunction so the next term starts a new group ANDed with the rest.
type Filter struct {
	groups []Disjunction
	// Whether the last disjunction and its last conjunction still accept
	// terms.
	openOr, openAnd bool
}

// ValidateTerm checks a FIELD=value match term: the name must be non-empty,
// use only A-Z, 0-9 and '_', and not start with "__".
func ValidateTerm(term []byte) error {
	eq := bytes.IndexByte(term, '=')
	if eq < 0 {
		return fmt.Errorf("match %q has no '=': %w", term, ErrInvalidArgument)
	}
	if err := validateFieldName(string(term[:eq])); err != nil {
		return fmt.Errorf("match %q: %w", term, err)
	}
	return nil
}

func validateFieldName(name string) error {
	if name == "" {
		return fmt.Errorf("empty field name: %w", ErrInvalidArgument)
	}
	if strings.HasPrefix(name, "__") {
		return fmt.Errorf("field %q is a pseudo-field: %w", name, ErrInvalidArgument)
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') && c != '_' {
			return fmt.Errorf("field %q has invalid character %q: %w", name, c, ErrInvalidArgument)
		}
	}
	return nil
}

func termField(term []byte) []byte {
	if eq := bytes.IndexByte(term, '='); eq >= 0 {
		return term[:eq]
	}
	return term
}

// Add appends a validated term. Adding a term already present in the open
// conjunction changes nothing.
func (f *Filter) Add(term []byte) error {
	if err := ValidateTerm(term); err != nil {
		return err
	}
	if !f.openOr {
		f.groups = append(f.groups, nil)
		f.openOr = true
		f.openAnd = false
	}
	or := &f.groups[len(f.groups)-1]
	if !f.openAnd {
		*or = append(*or, nil)
		f.openAnd = true
	}
	and := &(*or)[len(*or)-1]
	for _, t := range *and {
		if bytes.Equal(t, term) {
			return nil
		}
	}
	*and = append(*and, bytes.Clone(term))
	return nil
}

// AddDisjunction closes the open conjunction. It does nothing when that
// conjunction is empty.
func (f *Filter) AddDisjunction() {
	if f.openOr && f.openAnd {
		f.openAnd = false
	}
}

// AddConjunction closes the open disjunction. It does nothing when no
// terms were added since the last call.
func (f *Filter) AddConjunction() {
	if f.openOr {
		f.openOr = false
		f.openAnd = false
	}
}

// Flush empties the filter.
func (f *Filter) Flush() {
	*f = Filter{}
}

// Empty reports whether the filter matches everything.
func (f *Filter) Empty() bool {
	return len(f.groups) == 0
}

// Groups returns the disjunctions of the filter. The result must not be
// modified.
func (f *Filter) Groups() []Disjunction {
	return f.groups
}

// Terms returns every distinct term in the filter.
func (f *Filter) Terms() [][]byte {
	seen := make(map[string]bool)
	var out [][]byte
	for _, or := range f.groups {
		for _, and := range or {
			for _, t := range and {
				if !seen[string(t)] {
					seen[string(t)] = true
					out = append(out, t)
				}
			}
		}
	}
	return out
}

// Match evaluates the filter against an entry; has reports whether the
// entry contains a term.
func (f *Filter) Match(has func(term []byte) bool) bool {
	for _, or := range f.groups {
		if !or.match(has) {
			return false
		}
	}
	return true
}

func (d Disjunction) match(has func([]byte) bool) bool {
	for _, and := range d {
		if and.match(has) {
			return true
		}
	}
	return false
}

func (c Conjunction) match(has func([]byte) bool) bool {
	for i, t := range c {
		field := termField(t)
		// Each field is decided once, at its first term.
		first := true
		for _, prev := range c[:i] {
			if bytes.Equal(termField(prev), field) {
				first = false
				break
			}
		}
		if !first {
			continue
		}
		ok := false
		for _, alt := range c[i:] {
			if bytes.Equal(termField(alt), field) && has(alt) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return len(c) > 0
}

// String renders the filter for debugging, e.g. "(A=1 OR B=2) AND C=3".
func (f *Filter) String() string {
	if f.Empty() {
		return "*"
	}
	var ors []string
	for _, or := range f.groups {
		var ands []string
		for _, and := range or {
			var terms []string
			for _, t := range and {
				terms = append(terms, strconv.Quote(string(t)))
			}
			ands = append(ands, strings.Join(terms, " AND "))
		}
		s := strings.Join(ands, " OR ")
		if len(or) > 1 && len(f.groups) > 1 {
			s = "(" + s + ")"
		}
		ors = append(ors, s)
	}
	return strings.Join(ors, " AND ")
}
