package docstore

// Stage is one step of an aggregation pipeline.
type Stage interface {
	stage()
}

// Pipeline is an ordered list of stages.
type Pipeline []Stage

// Match keeps documents matching Filter.
type Match struct {
	Filter Filter
}

// Group buckets documents by the value of Key and emits one document per
// bucket with "_id" set to the key value. An empty Key groups everything into
// a single bucket whose "_id" is null.
type Group struct {
	Key          string
	Accumulators []Accumulator
}

// AccumulatorOp names a group accumulator.
type AccumulatorOp string

const (
	AccCount      AccumulatorOp = "count"
	AccCountWhere AccumulatorOp = "count_where"
	AccAvg        AccumulatorOp = "avg"
	AccMax        AccumulatorOp = "max"
)

// Accumulator computes one output field of a Group.
type Accumulator struct {
	Name   string
	Op     AccumulatorOp
	Field  string
	Equals any // AccCountWhere only
}

// Count counts the documents of a bucket.
func Count(name string) Accumulator {
	return Accumulator{Name: name, Op: AccCount}
}

// CountWhere counts the documents of a bucket whose field equals value.
func CountWhere(name, field string, value any) Accumulator {
	return Accumulator{Name: name, Op: AccCountWhere, Field: field, Equals: value}
}

// Avg averages the numeric values of field; null when there are none.
func Avg(name, field string) Accumulator {
	return Accumulator{Name: name, Op: AccAvg, Field: field}
}

// Max takes the largest value of field.
func Max(name, field string) Accumulator {
	return Accumulator{Name: name, Op: AccMax, Field: field}
}

// Ratio adds Name = Numerator / Denominator, or 0 when the denominator is 0.
type Ratio struct {
	Name        string
	Numerator   string
	Denominator string
}

// SortStage orders the documents flowing through the pipeline.
type SortStage struct {
	Sort Sort
}

func (Match) stage()     {}
func (Group) stage()     {}
func (Ratio) stage()     {}
func (SortStage) stage() {}
