package filter

import (
	"context"

	"github.com/tkingovr/toolbridge/internal/audit"
)

// AuditFilter writes a ledger record for every processed tool call. It runs
// on the result chain, after dispatch.
type AuditFilter struct {
	store audit.Store
}

func NewAuditFilter(store audit.Store) *AuditFilter {
	return &AuditFilter{store: store}
}

func (f *AuditFilter) Name() string { return "audit" }

func (f *AuditFilter) Process(ctx context.Context, fc *FilterContext) error {
	return f.store.Write(ctx, fc.ToAuditRecord())
}
