package models

import (
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// TestCaseStatus is the lifecycle state of a test case. Test cases are never
// deleted; they move to inactive instead.
type TestCaseStatus string

const (
	TestCaseActive   TestCaseStatus = "active"
	TestCaseInactive TestCaseStatus = "inactive"
)

// ErrInvalidStatus is returned for a test case status outside the lifecycle.
var ErrInvalidStatus = errors.New("invalid test case status")

// Validate checks s against the known lifecycle states.
func (s TestCaseStatus) Validate() error {
	switch s {
	case TestCaseActive, TestCaseInactive:
		return nil
	}
	return fmt.Errorf("%w: %q (want %s or %s)", ErrInvalidStatus, s, TestCaseActive, TestCaseInactive)
}

// TestCase is a registered UI test definition.
// Maps to: test_cases collection
type TestCase struct {
	ID       bson.ObjectID `bson:"_id,omitempty" json:"id"`
	TestID   string        `bson:"test_id" json:"test_id"`
	Hospital string        `bson:"hospital" json:"hospital"`

	Name        string            `bson:"name,omitempty" json:"name,omitempty"`
	Description string            `bson:"description,omitempty" json:"description,omitempty"`
	Steps       []string          `bson:"steps,omitempty" json:"steps,omitempty"`
	Selectors   map[string]string `bson:"selectors,omitempty" json:"selectors,omitempty"` // logical element name -> selector
	Tags        []string          `bson:"tags,omitempty" json:"tags,omitempty"`
	Status      TestCaseStatus    `bson:"status" json:"status"`

	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	LastModified time.Time `bson:"last_modified" json:"last_modified"`

	// Unmodelled upstream attributes, e.g. {"epic_version": "2025.11"}
	Extra map[string]any `bson:",inline" json:"-"`
}

var testCaseFields = []string{
	"test_id", "name", "description", "steps", "selectors", "tags",
	"status", "created_at", "last_modified",
}

// Clean drops Extra keys that shadow modelled fields.
func (t *TestCase) Clean() {
	t.Extra = cleanExtra(t.Extra, testCaseFields)
}

// UnmarshalJSON accepts unmodelled keys into Extra and keeps mistyped
// values under Extra[FieldUnparsed] instead of failing.
func (t *TestCase) UnmarshalJSON(data []byte) error {
	extra, err := decodeLenient(data, map[string]any{
		"id":            &t.ID,
		"test_id":       &t.TestID,
		"hospital":      &t.Hospital,
		"name":          &t.Name,
		"description":   &t.Description,
		"steps":         &t.Steps,
		"selectors":     &t.Selectors,
		"tags":          &t.Tags,
		"status":        &t.Status,
		"created_at":    &t.CreatedAt,
		"last_modified": &t.LastModified,
	})
	if err != nil {
		return err
	}
	t.Extra = extra
	return nil
}

// MarshalJSON renders Extra at the top level.
func (t TestCase) MarshalJSON() ([]byte, error) {
	type plain TestCase
	return marshalFlat(plain(t), t.Extra)
}

// TestCaseUpdate is an explicit partial update. Nil fields are left alone.
type TestCaseUpdate struct {
	Name        *string           `json:"name,omitempty"`
	Description *string           `json:"description,omitempty"`
	Steps       []string          `json:"steps,omitempty"`
	Selectors   map[string]string `json:"selectors,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Status      *TestCaseStatus   `json:"status,omitempty"`
	Extra       map[string]any    `json:"extra,omitempty"`
}

// Fields renders the update as field -> value assignments. Identity and
// audit fields cannot be set; last_modified is stamped by the registry.
func (u TestCaseUpdate) Fields() (map[string]any, error) {
	set := make(map[string]any)
	if u.Name != nil {
		set["name"] = *u.Name
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	if u.Steps != nil {
		set["steps"] = u.Steps
	}
	if u.Selectors != nil {
		set["selectors"] = u.Selectors
	}
	if u.Tags != nil {
		set["tags"] = u.Tags
	}
	if u.Status != nil {
		if err := u.Status.Validate(); err != nil {
			return nil, err
		}
		set["status"] = *u.Status
	}

	for k, v := range u.Extra {
		if err := unsafeKey(k); err != nil {
			return nil, err
		}
		if isModelled(k, testCaseFields) {
			return nil, fmt.Errorf("%w: %q", ErrReservedField, k)
		}
		set[k] = v
	}
	return set, nil
}
