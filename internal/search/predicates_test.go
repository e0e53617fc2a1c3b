package search

import (
	"strings"
	"testing"
)

func TestBuildPredicatesAlwaysActive(t *testing.T) {
	p := BuildPredicates(Filters{})

	if got := p.Where(); got != "WHERE l.is_active = TRUE" {
		t.Fatalf("unexpected where clause: %q", got)
	}
	if len(p.Args()) != 0 {
		t.Fatalf("expected no args, got %v", p.Args())
	}
}

func TestBuildPredicatesPlaceholderNumbering(t *testing.T) {
	yearMin := 2020
	priceMax := 30000
	f := Filters{
		Make:     []string{"Toyota", "Honda"},
		YearMin:  &yearMin,
		PriceMax: &priceMax,
	}

	p := BuildPredicates(f)
	where := p.Where()

	for _, want := range []string{
		"l.is_active = TRUE",
		"l.make IN ($1, $2)",
		"l.year >= $3",
		"l.price <= $4",
	} {
		if !strings.Contains(where, want) {
			t.Fatalf("where clause %q missing %q", where, want)
		}
	}

	args := p.Args()
	if len(args) != 4 {
		t.Fatalf("expected 4 args, got %v", args)
	}
	if args[0] != "Toyota" || args[1] != "Honda" || args[2] != 2020 || args[3] != 30000 {
		t.Fatalf("args out of placeholder order: %v", args)
	}
	if p.NextPlaceholder() != 5 {
		t.Fatalf("NextPlaceholder() = %d, want 5", p.NextPlaceholder())
	}
}

func TestBuildPredicatesDealerType(t *testing.T) {
	p := BuildPredicates(Filters{DealerType: []string{"franchise"}})
	if !strings.Contains(p.Where(), "d.dealer_type IN ($1)") {
		t.Fatalf("dealer type should filter on the joined table: %q", p.Where())
	}
}

func TestBuildPredicatesCertified(t *testing.T) {
	certified := true
	p := BuildPredicates(Filters{IsCertified: &certified})

	if !strings.Contains(p.Where(), "l.is_certified = $1") {
		t.Fatalf("unexpected where clause: %q", p.Where())
	}
	if args := p.Args(); len(args) != 1 || args[0] != true {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestWhereExtraDoesNotMutate(t *testing.T) {
	p := BuildPredicates(Filters{Make: []string{"Toyota"}})

	withExtra := p.Where("l.price IS NOT NULL")
	if !strings.HasSuffix(withExtra, "AND l.price IS NOT NULL") {
		t.Fatalf("extra clause not appended: %q", withExtra)
	}

	if strings.Contains(p.Where(), "IS NOT NULL") {
		t.Fatal("Where with extras mutated the shared predicate list")
	}
}
