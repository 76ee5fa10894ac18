package docstore

import (
	"bytes"
	"cmp"
	"reflect"
	"sort"
	"strings"
	"time"
	"unicode"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Value evaluation for the in-memory backend. Documents are held as bson.M
// after a BSON round trip, so stored values are BSON-native types; filter
// values arrive as Go types and are normalised before comparing.

// Type brackets, ordered the way MongoDB orders mixed types.
const (
	rankNull = iota
	rankNumber
	rankString
	rankObjectID
	rankBool
	rankDate
	rankOther
)

func normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		return bson.NewDateTimeFromTime(x)
	case *time.Time:
		if x == nil {
			return nil
		}
		return bson.NewDateTimeFromTime(*x)
	case bson.DateTime, bson.ObjectID, bson.A, bson.D, bson.M:
		return x
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	}
	return v
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return rankNull
	case float64:
		return rankNumber
	case string:
		return rankString
	case bson.ObjectID:
		return rankObjectID
	case bool:
		return rankBool
	case bson.DateTime:
		return rankDate
	default:
		return rankOther
	}
}

// compare orders a and b. ok is false when the values are not comparable
// (different type brackets, or unequal composite values); the returned order
// is still usable for sorting.
func compare(a, b any) (int, bool) {
	na, nb := normalize(a), normalize(b)
	ra, rb := rank(na), rank(nb)
	if ra != rb {
		return cmp.Compare(ra, rb), false
	}

	switch x := na.(type) {
	case nil:
		return 0, true
	case float64:
		return cmp.Compare(x, nb.(float64)), true
	case string:
		return strings.Compare(x, nb.(string)), true
	case bson.ObjectID:
		y := nb.(bson.ObjectID)
		return bytes.Compare(x[:], y[:]), true
	case bool:
		y := nb.(bool)
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		default:
			return 1, true
		}
	case bson.DateTime:
		return cmp.Compare(int64(x), int64(nb.(bson.DateTime))), true
	}

	if reflect.DeepEqual(na, nb) {
		return 0, true
	}
	return 0, false
}

func equal(a, b any) bool {
	c, ok := compare(a, b)
	return ok && c == 0
}

func toFloat(v any) (float64, bool) {
	f, ok := normalize(v).(float64)
	return f, ok
}

func matchesFilter(doc bson.M, filter Filter) bool {
	for _, c := range filter {
		if !matchCond(doc, c) {
			return false
		}
	}
	return true
}

func matchCond(doc bson.M, c Cond) bool {
	v, present := doc[c.Field]

	switch c.Op {
	case OpEq:
		return eqMatch(v, present, c.Value)
	case OpNe:
		return !eqMatch(v, present, c.Value)
	}

	if !present {
		return false
	}
	if arr, ok := v.(bson.A); ok {
		for _, elem := range arr {
			if rangeMatch(elem, c) {
				return true
			}
		}
		return false
	}
	return rangeMatch(v, c)
}

func eqMatch(v any, present bool, want any) bool {
	if !present {
		return normalize(want) == nil
	}
	if arr, ok := v.(bson.A); ok {
		for _, elem := range arr {
			if equal(elem, want) {
				return true
			}
		}
	}
	return equal(v, want)
}

func rangeMatch(v any, c Cond) bool {
	order, ok := compare(v, c.Value)
	if !ok {
		return false
	}
	switch c.Op {
	case OpGt:
		return order > 0
	case OpGte:
		return order >= 0
	case OpLt:
		return order < 0
	case OpLte:
		return order <= 0
	}
	return false
}

func sortDocs(docs []bson.M, by Sort) {
	if len(by) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, f := range by {
			order, _ := compare(docs[i][f.Field], docs[j][f.Field])
			if order == 0 {
				continue
			}
			if f.Desc {
				return order > 0
			}
			return order < 0
		}
		return false
	})
}

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "at": true, "by": true,
	"for": true, "in": true, "is": true, "not": true, "of": true, "on": true,
	"or": true, "the": true, "to": true, "with": true,
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if !stopWords[f] {
			out = append(out, f)
		}
	}
	return out
}
