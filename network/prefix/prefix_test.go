package prefix

import "testing"

func TestEmptyMatchesEverything(t *testing.T) {
	p := Empty()
	for _, name := range []Name{0, 1, ^Name(0), 0x8000000000000000} {
		if !p.Matches(name) {
			t.Fatalf("empty prefix should match %x", name)
		}
	}
}

func TestExtendShortenRoundTrip(t *testing.T) {
	p := Empty()
	for _, bit := range []byte{0, 1} {
		child, err := p.Extend(bit)
		if err != nil {
			t.Fatal(err)
		}
		back, err := child.Shorten()
		if err != nil {
			t.Fatal(err)
		}
		if !back.Equal(p) {
			t.Fatalf("extend(%d).shorten() = %v, want %v", bit, back, p)
		}
	}
}

func TestExtendFailsAtMaxLength(t *testing.T) {
	p := Empty()
	var err error
	for i := 0; i < 64; i++ {
		p, err = p.Extend(1)
		if err != nil {
			t.Fatalf("unexpected error at depth %d: %v", i, err)
		}
	}
	if _, err := p.Extend(0); err != ErrFullPrefix {
		t.Fatalf("expected ErrFullPrefix, got %v", err)
	}
}

func TestShortenFailsAtEmpty(t *testing.T) {
	if _, err := Empty().Shorten(); err != ErrEmptyPrefix {
		t.Fatalf("expected ErrEmptyPrefix, got %v", err)
	}
}

func TestSiblingInvolution(t *testing.T) {
	p, _ := Empty().Extend(1)
	p, _ = p.Extend(0)

	once, err := p.Sibling()
	if err != nil {
		t.Fatal(err)
	}
	twice, err := once.Sibling()
	if err != nil {
		t.Fatal(err)
	}
	if !twice.Equal(p) {
		t.Fatalf("sibling().sibling() = %v, want %v", twice, p)
	}
}

func TestSiblingFailsAtEmpty(t *testing.T) {
	if _, err := Empty().Sibling(); err != ErrEmptyPrefix {
		t.Fatalf("expected ErrEmptyPrefix, got %v", err)
	}
}

func TestIsAncestor(t *testing.T) {
	root := Empty()
	zero, _ := root.Extend(0)
	zeroOne, _ := zero.Extend(1)

	if !root.IsAncestor(zeroOne) {
		t.Fatal("empty prefix must be an ancestor of every prefix")
	}
	if !zero.IsAncestor(zeroOne) {
		t.Fatal("'0' must be an ancestor of '01'")
	}
	if zeroOne.IsAncestor(zero) {
		t.Fatal("'01' must not be an ancestor of its own parent")
	}
	one, _ := root.Extend(1)
	if zero.IsAncestor(one) || one.IsAncestor(zero) {
		t.Fatal("'0' and '1' must not be ancestors of each other")
	}
}

func TestIsCompatibleWith(t *testing.T) {
	zero, _ := Empty().Extend(0)
	zeroOne, _ := zero.Extend(1)
	one, _ := Empty().Extend(1)

	if !zero.IsCompatibleWith(zeroOne) || !zeroOne.IsCompatibleWith(zero) {
		t.Fatal("ancestor/descendant pair must be compatible both ways")
	}
	if zero.IsCompatibleWith(one) {
		t.Fatal("siblings must not be compatible")
	}
}

func TestIsNeighbour(t *testing.T) {
	zero, _ := Empty().Extend(0)
	one, _ := Empty().Extend(1)
	if !zero.IsNeighbour(one) || !one.IsNeighbour(zero) {
		t.Fatal("'0' and '1' must be neighbours")
	}

	zeroZero, _ := zero.Extend(0)
	if zeroZero.IsNeighbour(one) {
		t.Fatal("different-length prefixes must not be neighbours")
	}
	if Empty().IsNeighbour(Empty()) {
		t.Fatal("the empty prefix has no neighbour")
	}
}

func TestLessIsLexicographicByBitsThenLength(t *testing.T) {
	zero, _ := Empty().Extend(0)
	zeroZero, _ := zero.Extend(0)
	one, _ := Empty().Extend(1)

	if !zero.Less(zeroZero) {
		t.Fatal("a prefix must sort before its own longer self")
	}
	if !zeroZero.Less(one) {
		t.Fatal("'00' must sort before '1'")
	}
	if one.Less(zero) {
		t.Fatal("'1' must not sort before '0'")
	}
}

func TestMatchesRespectsPrefixLength(t *testing.T) {
	p, _ := Empty().Extend(1) // matches names with their top bit set
	if !p.Matches(Name(1) << 63) {
		t.Fatal("expected match")
	}
	if p.Matches(Name(0)) {
		t.Fatal("expected no match")
	}
}
