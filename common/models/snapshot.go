package models

import (
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// UISnapshot is a structural fingerprint of a page at one point in time.
// Maps to: ui_snapshots collection
type UISnapshot struct {
	ID             bson.ObjectID  `bson:"_id,omitempty" json:"id"`
	PageIdentifier string         `bson:"page_identifier" json:"page_identifier"`
	Hospital       string         `bson:"hospital" json:"hospital"`
	Selectors      []string       `bson:"selectors" json:"selectors"`
	Hierarchy      map[string]any `bson:"hierarchy,omitempty" json:"hierarchy,omitempty"`
	ScreenshotPath string         `bson:"screenshot_path,omitempty" json:"screenshot_path,omitempty"`
	Timestamp      time.Time      `bson:"timestamp" json:"timestamp"`

	Extra map[string]any `bson:",inline" json:"-"`
}

var snapshotFields = []string{
	"page_identifier", "selectors", "hierarchy", "screenshot_path", "timestamp",
}

func (s *UISnapshot) Clean() {
	s.Extra = cleanExtra(s.Extra, snapshotFields)
}

func (s *UISnapshot) UnmarshalJSON(data []byte) error {
	extra, err := decodeLenient(data, map[string]any{
		"id":              &s.ID,
		"page_identifier": &s.PageIdentifier,
		"hospital":        &s.Hospital,
		"selectors":       &s.Selectors,
		"hierarchy":       &s.Hierarchy,
		"screenshot_path": &s.ScreenshotPath,
		"timestamp":       &s.Timestamp,
	})
	if err != nil {
		return err
	}
	s.Extra = extra
	return nil
}

func (s UISnapshot) MarshalJSON() ([]byte, error) {
	type plain UISnapshot
	return marshalFlat(plain(s), s.Extra)
}

// ChangeType classifies a SelectorChange
type ChangeType string

const (
	ChangeRemoved ChangeType = "removed"
	ChangeAdded   ChangeType = "added"
)

// SelectorChange lists selectors that appeared or disappeared, sorted.
type SelectorChange struct {
	Type      ChangeType `json:"type"`
	Selectors []string   `json:"selectors"`
}

// UIDiff is the existence-based difference between two snapshots of a page.
// Reordering, attribute changes and hierarchy moves are not reported.
type UIDiff struct {
	IsNew             bool             `json:"is_new"`
	HasChanges        bool             `json:"has_changes"`
	Changes           []SelectorChange `json:"changes"`
	PreviousTimestamp *time.Time       `json:"previous_timestamp,omitempty"`
}

// DiffSnapshots compares current against previous. A nil previous means the
// page has not been seen before.
func DiffSnapshots(previous *UISnapshot, current []string) UIDiff {
	if previous == nil {
		return UIDiff{IsNew: true, Changes: []SelectorChange{}}
	}

	diff := UIDiff{Changes: []SelectorChange{}}
	ts := previous.Timestamp
	diff.PreviousTimestamp = &ts

	if removed := setDifference(previous.Selectors, current); len(removed) > 0 {
		diff.Changes = append(diff.Changes, SelectorChange{Type: ChangeRemoved, Selectors: removed})
	}
	if added := setDifference(current, previous.Selectors); len(added) > 0 {
		diff.Changes = append(diff.Changes, SelectorChange{Type: ChangeAdded, Selectors: added})
	}
	diff.HasChanges = len(diff.Changes) > 0
	return diff
}

// setDifference returns the distinct elements of a missing from b, sorted.
func setDifference(a, b []string) []string {
	seen := make(map[string]bool, len(b))
	for _, s := range b {
		seen[s] = true
	}
	var out []string
	for _, s := range a {
		if !seen[s] {
			out = append(out, s)
			seen[s] = true
		}
	}
	slices.Sort(out)
	return out
}
