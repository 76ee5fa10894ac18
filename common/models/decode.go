package models

import (
	"encoding/json"
	"errors"
	"reflect"

	"github.com/tidwall/gjson"
)

// ErrNotObject is returned when a document body is not a JSON object.
var ErrNotObject = errors.New("document must be a JSON object")

// FieldUnparsed collects modelled attributes whose values did not fit their
// type. They are kept as sent so no upstream telemetry is lost.
const FieldUnparsed = "unparsed"

// decodeLenient decodes a JSON object one key at a time. Keys found in
// targets are decoded into the pointed-to field; every other key lands in
// the returned extra map. A value that does not fit its target leaves the
// field at its zero value and is recorded under extra[FieldUnparsed].
func decodeLenient(data []byte, targets map[string]any) (map[string]any, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrNotObject
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, ErrNotObject
	}

	extra := make(map[string]any)
	unparsed := make(map[string]any)
	doc.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		target, ok := targets[name]
		if !ok {
			extra[name] = value.Value()
			return true
		}
		if err := json.Unmarshal([]byte(value.Raw), target); err != nil {
			reflect.ValueOf(target).Elem().SetZero()
			unparsed[name] = value.Value()
		}
		return true
	})

	if len(unparsed) > 0 {
		if sent, ok := extra[FieldUnparsed].(map[string]any); ok {
			for k, v := range sent {
				if _, taken := unparsed[k]; !taken {
					unparsed[k] = v
				}
			}
		}
		extra[FieldUnparsed] = unparsed
	}
	if len(extra) == 0 {
		return nil, nil
	}
	return extra, nil
}

// marshalFlat renders v with its extra attributes lifted to the top level,
// mirroring how they are inlined into the stored document. Modelled fields
// win over extra keys of the same name.
func marshalFlat(v any, extra map[string]any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	for k, val := range extra {
		if _, taken := doc[k]; taken {
			continue
		}
		raw, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		doc[k] = raw
	}
	return json.Marshal(doc)
}
