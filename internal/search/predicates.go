package search

import (
	"fmt"
	"strings"
)

// Predicates is the predicate list built once per request from a Filters
// value and shared, unmodified, by the main query and every facet, stat,
// and bucket sub-query. That reuse is what keeps every number in one
// response describing the same filtered row set. Values are never mutated
// after construction; per-query refinements are passed to Where, which
// copies before appending.
type Predicates struct {
	clauses []string
	args    []any
}

// BuildPredicates translates a Filters value into predicate conditions
// over listings (aliased l) left-joined to dealers (aliased d). The
// geographic filter is deliberately absent: radius filtering needs a
// distance computation and happens in the application layer.
func BuildPredicates(f Filters) Predicates {
	p := Predicates{}

	p.add("l.is_active = TRUE")

	p.addIn("l.make", f.Make)
	p.addIn("l.model", f.Model)
	p.addIn("l.trim", f.Trim)

	p.addMin("l.year", f.YearMin)
	p.addMax("l.year", f.YearMax)
	p.addMin("l.price", f.PriceMin)
	p.addMax("l.price", f.PriceMax)
	p.addMin("l.miles", f.MilesMin)
	p.addMax("l.miles", f.MilesMax)

	p.addIn("l.condition", f.Condition)
	if f.IsCertified != nil {
		p.args = append(p.args, *f.IsCertified)
		p.add(fmt.Sprintf("l.is_certified = $%d", len(p.args)))
	}

	p.addIn("l.exterior_color", f.ExteriorColor)
	p.addIn("l.interior_color", f.InteriorColor)
	p.addIn("l.drivetrain", f.Drivetrain)
	p.addIn("l.transmission", f.Transmission)
	p.addIn("l.fuel_type", f.FuelType)

	// Requires the dealer join; a NULL dealer type matches no requested
	// value, so listings without a dealer drop out when this filter is set.
	p.addIn("d.dealer_type", f.DealerType)

	return p
}

// Where renders the predicate list as a WHERE clause with optional extra
// conditions appended. Callers binding arguments in an extra condition
// number them from NextPlaceholder and append the values after Args.
func (p Predicates) Where(extra ...string) string {
	clauses := append(append([]string{}, p.clauses...), extra...)
	return "WHERE " + strings.Join(clauses, " AND ")
}

// Args returns a copy of the bind arguments in placeholder order.
func (p Predicates) Args() []any {
	return append([]any{}, p.args...)
}

// NextPlaceholder returns the placeholder index for the first argument a
// caller appends beyond the predicate args.
func (p Predicates) NextPlaceholder() int {
	return len(p.args) + 1
}

func (p *Predicates) add(clause string) {
	p.clauses = append(p.clauses, clause)
}

func (p *Predicates) addIn(column string, values []string) {
	if len(values) == 0 {
		return
	}

	placeholders := make([]string, len(values))
	for i, v := range values {
		p.args = append(p.args, v)
		placeholders[i] = fmt.Sprintf("$%d", len(p.args))
	}
	p.add(fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ", ")))
}

func (p *Predicates) addMin(column string, value *int) {
	if value == nil {
		return
	}
	p.args = append(p.args, *value)
	p.add(fmt.Sprintf("%s >= $%d", column, len(p.args)))
}

func (p *Predicates) addMax(column string, value *int) {
	if value == nil {
		return
	}
	p.args = append(p.args, *value)
	p.add(fmt.Sprintf("%s <= $%d", column, len(p.args)))
}
