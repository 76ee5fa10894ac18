package docstore

import "time"

// Operator is a comparison operator usable in a Cond.
type Operator string

const (
	OpEq  Operator = "$eq"
	OpNe  Operator = "$ne"
	OpGt  Operator = "$gt"
	OpGte Operator = "$gte"
	OpLt  Operator = "$lt"
	OpLte Operator = "$lte"
)

// Cond compares one top-level field against a value.
type Cond struct {
	Field string
	Op    Operator
	Value any
}

// Filter is a conjunction of conditions. An empty filter matches everything.
type Filter []Cond

func Eq(field string, value any) Cond  { return Cond{Field: field, Op: OpEq, Value: value} }
func Ne(field string, value any) Cond  { return Cond{Field: field, Op: OpNe, Value: value} }
func Gt(field string, value any) Cond  { return Cond{Field: field, Op: OpGt, Value: value} }
func Gte(field string, value any) Cond { return Cond{Field: field, Op: OpGte, Value: value} }
func Lt(field string, value any) Cond  { return Cond{Field: field, Op: OpLt, Value: value} }
func Lte(field string, value any) Cond { return Cond{Field: field, Op: OpLte, Value: value} }

// And builds a filter from conditions.
func And(conds ...Cond) Filter {
	return Filter(conds)
}

// With returns a copy of f extended with conds.
func (f Filter) With(conds ...Cond) Filter {
	out := make(Filter, 0, len(f)+len(conds))
	out = append(out, f...)
	return append(out, conds...)
}

// SortField orders by one field.
type SortField struct {
	Field string
	Desc  bool
}

// Sort is an ordered list of sort fields; earlier fields take precedence.
type Sort []SortField

func Asc(field string) SortField  { return SortField{Field: field} }
func Desc(field string) SortField { return SortField{Field: field, Desc: true} }

// By builds a Sort.
func By(fields ...SortField) Sort {
	return Sort(fields)
}

// Index describes a secondary index. Keys and Text may be combined; a
// collection supports at most one text index. ExpireAfter makes a TTL index
// on the single key field.
type Index struct {
	Name        string
	Keys        Sort
	Text        []string
	Unique      bool
	ExpireAfter *time.Duration
}
