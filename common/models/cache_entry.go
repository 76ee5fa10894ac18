package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// CacheEntry holds retrieved LLM context keyed by prompt fingerprint.
// Maps to: llm_context_cache collection
type CacheEntry struct {
	ID          bson.ObjectID  `bson:"_id,omitempty" json:"-"`
	PromptHash  string         `bson:"prompt_hash" json:"prompt_hash"`
	Hospital    string         `bson:"hospital" json:"hospital"`
	ContextData map[string]any `bson:"context_data" json:"context_data"`
	CreatedAt   time.Time      `bson:"created_at" json:"created_at"`
	ExpiresAt   time.Time      `bson:"expires_at" json:"expires_at"`
}

// Live reports whether the entry may still be served at now.
func (e *CacheEntry) Live(now time.Time) bool {
	return e.ExpiresAt.After(now)
}
