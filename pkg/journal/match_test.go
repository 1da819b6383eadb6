package journal

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestValidateTerm(t *testing.T) {
	for _, term := range []string{"MESSAGE=hi", "_PID=1", "A=", "X_1=a=b"} {
		if err := ValidateTerm([]byte(term)); err != nil {
			t.Errorf("ValidateTerm(%q) = %v", term, err)
		}
	}
	for _, term := range []string{"", "MESSAGE", "=x", "message=x", "__CURSOR=x", "A-B=1", "A B=1"} {
		if err := ValidateTerm([]byte(term)); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("ValidateTerm(%q) = %v, want invalid argument", term, err)
		}
	}
}

// entry builds a has() function over a set of terms.
func entry(terms ...string) func([]byte) bool {
	set := make(map[string]bool)
	for _, t := range terms {
		set[t] = true
	}
	return func(term []byte) bool { return set[string(term)] }
}

func mustAdd(t *testing.T, f *Filter, terms ...string) {
	t.Helper()
	for _, term := range terms {
		if err := f.Add([]byte(term)); err != nil {
			t.Fatalf("Add(%q): %v", term, err)
		}
	}
}

func TestFilterSameFieldIsOr(t *testing.T) {
	var f Filter
	mustAdd(t, &f, "UNIT=a", "UNIT=b", "PRIORITY=3")

	tests := []struct {
		entry []string
		want  bool
	}{
		{[]string{"UNIT=a", "PRIORITY=3"}, true},
		{[]string{"UNIT=b", "PRIORITY=3"}, true},
		{[]string{"UNIT=c", "PRIORITY=3"}, false},
		{[]string{"UNIT=a"}, false},
		{[]string{"UNIT=a", "UNIT=b", "PRIORITY=3"}, true},
	}
	for _, tt := range tests {
		if got := f.Match(entry(tt.entry...)); got != tt.want {
			t.Errorf("Match(%v) = %v, want %v", tt.entry, got, tt.want)
		}
	}
}

func TestFilterDisjunctionAndConjunction(t *testing.T) {
	// (UNIT=a AND PRIORITY=3 OR UNIT=b) AND HOST=x
	var f Filter
	mustAdd(t, &f, "UNIT=a", "PRIORITY=3")
	f.AddDisjunction()
	mustAdd(t, &f, "UNIT=b")
	f.AddConjunction()
	mustAdd(t, &f, "HOST=x")

	tests := []struct {
		entry []string
		want  bool
	}{
		{[]string{"UNIT=a", "PRIORITY=3", "HOST=x"}, true},
		{[]string{"UNIT=b", "HOST=x"}, true},
		{[]string{"UNIT=a", "HOST=x"}, false},
		{[]string{"UNIT=b"}, false},
		{[]string{"HOST=x"}, false},
	}
	for _, tt := range tests {
		if got := f.Match(entry(tt.entry...)); got != tt.want {
			t.Errorf("Match(%v) = %v, want %v", tt.entry, got, tt.want)
		}
	}

	want := []Disjunction{
		{
			Conjunction{[]byte("UNIT=a"), []byte("PRIORITY=3")},
			Conjunction{[]byte("UNIT=b")},
		},
		{
			Conjunction{[]byte("HOST=x")},
		},
	}
	if diff := cmp.Diff(want, f.Groups()); diff != "" {
		t.Errorf("Groups() mismatch (-want +got):\n%s", diff)
	}
	if got, want := f.String(), `("UNIT=a" AND "PRIORITY=3" OR "UNIT=b") AND "HOST=x"`; got != want {
		t.Errorf("String() = %s, want %s", got, want)
	}
}

func TestFilterEdgeCases(t *testing.T) {
	var f Filter
	if !f.Empty() || !f.Match(entry()) {
		t.Fatal("empty filter must match everything")
	}

	// Separators without terms change nothing.
	f.AddDisjunction()
	f.AddConjunction()
	if !f.Empty() {
		t.Fatal("separators alone made the filter non-empty")
	}

	mustAdd(t, &f, "A=1", "A=1")
	if got := len(f.Terms()); got != 1 {
		t.Errorf("duplicate term stored %d times", got)
	}

	if err := f.Add([]byte("bad")); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Add(bad) = %v", err)
	}
	if got := len(f.Terms()); got != 1 {
		t.Errorf("rejected term changed the filter: %d terms", got)
	}

	// A trailing AddDisjunction adds no alternative.
	f.AddDisjunction()
	if f.Match(entry("B=2")) {
		t.Error("trailing AddDisjunction matched an unrelated entry")
	}

	f.Flush()
	if !f.Empty() || f.String() != "*" {
		t.Errorf("after Flush: %s", f.String())
	}
}

func TestFilterBinaryTerms(t *testing.T) {
	var f Filter
	term := []byte("DATA=\x00\xff\n")
	if err := f.Add(term); err != nil {
		t.Fatalf("Add: %v", err)
	}
	term[5] = 'x' // Add keeps its own copy.
	if !f.Match(entry("DATA=\x00\xff\n")) {
		t.Error("binary term did not match")
	}
}
