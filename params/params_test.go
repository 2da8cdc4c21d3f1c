package params

import (
	"strings"
	"testing"
)

func TestParseBasic(t *testing.T) {
	s, err := Parse(strings.NewReader("k=0.5\np = 2\nneighborDist=12.5\n# not a comment, just ignored\nthis has no equals\n"))
	if err != nil {
		t.Fatal(err)
	}
	if v, ok, err := s.Float64("k"); err != nil || !ok || v != 0.5 {
		t.Errorf("k = %v, %v, %v; want 0.5, true, nil", v, ok, err)
	}
	if v, ok, err := s.Float64("p"); err != nil || !ok || v != 2 {
		t.Errorf("p = %v, %v, %v; want 2, true, nil", v, ok, err)
	}
	if _, ok, _ := s.Float64("missing"); ok {
		t.Error("expected missing key to report absent")
	}
}

func TestParseDuplicateKeyLastWins(t *testing.T) {
	s, err := Parse(strings.NewReader("k=1\nk=2\nk=3\n"))
	if err != nil {
		t.Fatal(err)
	}
	v, ok, err := s.Float64("k")
	if err != nil || !ok || v != 3 {
		t.Errorf("k = %v, %v, %v; want 3, true, nil", v, ok, err)
	}
}

func TestParseIgnoresBlankAndNoEqualsLines(t *testing.T) {
	s, err := Parse(strings.NewReader("\n   \nk=1\nstray text\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(s.entries) != 1 {
		t.Errorf("expected exactly 1 entry, got %d", len(s.entries))
	}
}

func TestFloat64InvalidValue(t *testing.T) {
	s, err := Parse(strings.NewReader("k=notanumber\n"))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok, err := s.Float64("k"); !ok || err == nil {
		t.Errorf("expected present-but-error for unparsable value, got ok=%v err=%v", ok, err)
	}
}

func TestIntBasic(t *testing.T) {
	s, err := Parse(strings.NewReader("newtonIter=100\nlbfgsWindow=5\n"))
	if err != nil {
		t.Fatal(err)
	}
	if v, ok, err := s.Int("newtonIter"); err != nil || !ok || v != 100 {
		t.Errorf("newtonIter = %v, %v, %v; want 100, true, nil", v, ok, err)
	}
}
