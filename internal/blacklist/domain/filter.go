package domain

import (
	"fmt"
	"strings"
)

// Fielder exposes named fields of a record for predicate evaluation.
type Fielder interface {
	Field(name string) (any, bool)
}

// Predicate is a boolean filter expression evaluated by record stores.
// The only implementations are EqualsExpr, AndExpr and OrExpr.
type Predicate interface {
	Match(r Fielder) bool
	String() string
	isPredicate()
}

// EqualsExpr matches records whose Field equals Value.
type EqualsExpr struct {
	Field string
	Value any
}

// AndExpr matches when every term matches. An empty AndExpr matches everything.
type AndExpr struct {
	Terms []Predicate
}

// OrExpr matches when at least one term matches. An empty OrExpr matches nothing.
type OrExpr struct {
	Terms []Predicate
}

func Equals(field string, value any) Predicate {
	return EqualsExpr{Field: field, Value: value}
}

func And(terms ...Predicate) Predicate {
	return AndExpr{Terms: terms}
}

func Or(terms ...Predicate) Predicate {
	return OrExpr{Terms: terms}
}

// In matches records whose field equals any of values. It is shorthand for
// Or(Equals(field, v1), Equals(field, v2), ...), so an empty list matches nothing.
func In[V any](field string, values []V) Predicate {
	terms := make([]Predicate, 0, len(values))
	for _, v := range values {
		terms = append(terms, Equals(field, v))
	}
	return Or(terms...)
}

func (e EqualsExpr) Match(r Fielder) bool {
	v, ok := r.Field(e.Field)
	if !ok {
		return false
	}
	return equalValues(v, e.Value)
}

func (e AndExpr) Match(r Fielder) bool {
	for _, t := range e.Terms {
		if !t.Match(r) {
			return false
		}
	}
	return true
}

func (e OrExpr) Match(r Fielder) bool {
	for _, t := range e.Terms {
		if t.Match(r) {
			return true
		}
	}
	return false
}

func (e EqualsExpr) String() string { return fmt.Sprintf("%s == %#v", e.Field, e.Value) }
func (e AndExpr) String() string    { return joinTerms("and", e.Terms) }
func (e OrExpr) String() string     { return joinTerms("or", e.Terms) }

func (EqualsExpr) isPredicate() {}
func (AndExpr) isPredicate()    {}
func (OrExpr) isPredicate()     {}

func joinTerms(op string, terms []Predicate) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = t.String()
	}
	return op + "(" + strings.Join(parts, ", ") + ")"
}

// equalValues compares scalar field values. Integer kinds are widened so that
// Equals("blockTime", 86400) matches an int64 field.
func equalValues(a, b any) bool {
	if ai, ok := asInt64(a); ok {
		bi, ok := asInt64(b)
		return ok && ai == bi
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	default:
		return false
	}
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	default:
		return 0, false
	}
}
