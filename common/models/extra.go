package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrReservedField is returned when an extra attribute or partial update
// targets a field the store manages itself.
var ErrReservedField = errors.New("reserved field")

// Fields every tenant document carries.
const (
	FieldID       = "_id"
	FieldHospital = "hospital"
)

// cleanExtra returns extra without keys that collide with modelled fields.
// Unmodelled attributes from upstream tooling ride along in Extra; the
// modelled value always wins.
func cleanExtra(extra map[string]any, modelled []string) map[string]any {
	if len(extra) == 0 {
		return nil
	}
	out := make(map[string]any, len(extra))
	for k, v := range extra {
		if isModelled(k, modelled) || unsafeKey(k) != nil {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func isModelled(key string, modelled []string) bool {
	for _, m := range modelled {
		if key == m {
			return true
		}
	}
	return key == FieldID || key == FieldHospital
}

// unsafeKey rejects keys the document store would read as operators or paths.
func unsafeKey(key string) error {
	if key == "" || strings.HasPrefix(key, "$") || strings.Contains(key, ".") {
		return fmt.Errorf("%w: %q is not a valid attribute name", ErrReservedField, key)
	}
	return nil
}
