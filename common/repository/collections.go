package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/lyzr/teststate/common/docstore"
	"github.com/lyzr/teststate/common/tenant"
)

// Collection names inside a tenant database
const (
	CollTestCases    = "test_cases"
	CollExecutions   = "test_executions"
	CollSelfHeal     = "self_heal_decisions"
	CollSnapshots    = "ui_snapshots"
	CollContextCache = "llm_context_cache"
)

var expireAtDeadline = time.Duration(0)

var tenantIndexes = map[string][]docstore.Index{
	CollTestCases: {
		{Name: "hospital_test_id_unique", Keys: docstore.By(docstore.Asc("hospital"), docstore.Asc("test_id")), Unique: true},
		{Name: "status_last_modified", Keys: docstore.By(docstore.Asc("status"), docstore.Desc("last_modified"))},
		{Name: "tags", Keys: docstore.By(docstore.Asc("tags"))},
	},
	CollExecutions: {
		{Name: "test_case_id_timestamp", Keys: docstore.By(docstore.Asc("test_case_id"), docstore.Desc("timestamp"))},
		{Name: "status_timestamp", Keys: docstore.By(docstore.Asc("status"), docstore.Desc("timestamp"))},
		{Name: "hospital_timestamp", Keys: docstore.By(docstore.Asc("hospital"), docstore.Desc("timestamp"))},
	},
	CollSelfHeal: {
		{Name: "test_id_timestamp", Keys: docstore.By(docstore.Asc("test_id"), docstore.Desc("timestamp"))},
		{Name: "engineer_approved", Keys: docstore.By(docstore.Asc("engineer_approved"))},
		{Name: "failure_reason_text", Text: []string{"failure_reason"}},
	},
	CollSnapshots: {
		{Name: "page_identifier_timestamp", Keys: docstore.By(docstore.Asc("page_identifier"), docstore.Desc("timestamp"))},
	},
	CollContextCache: {
		{Name: "hospital_prompt_hash_unique", Keys: docstore.By(docstore.Asc("hospital"), docstore.Asc("prompt_hash")), Unique: true},
		// Physical cleanup only; reads still filter on expires_at.
		{Name: "expires_at_ttl", Keys: docstore.By(docstore.Asc("expires_at")), ExpireAfter: &expireAtDeadline},
	},
}

// EnsureIndexes creates the indexes every tenant database needs. It is
// idempotent.
func EnsureIndexes(ctx context.Context, store docstore.Store, tc *tenant.Context) error {
	for _, coll := range []string{CollTestCases, CollExecutions, CollSelfHeal, CollSnapshots, CollContextCache} {
		for _, idx := range tenantIndexes[coll] {
			if err := store.CreateIndex(ctx, tc.Namespace(coll), idx); err != nil {
				return fmt.Errorf("failed to ensure index %s on %s: %w", idx.Name, coll, err)
			}
		}
	}
	return nil
}
