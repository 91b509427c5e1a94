package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tkingovr/toolbridge/api"
	"github.com/tkingovr/toolbridge/internal/message"
	"github.com/tkingovr/toolbridge/internal/provider"
)

// CompletionRecord converts the usage of one successful completion into a
// ledger record.
func CompletionRecord(providerName string, pu provider.ProviderUsage, start time.Time) *api.AuditRecord {
	r := &api.AuditRecord{
		ID:           uuid.NewString(),
		Timestamp:    start,
		Kind:         api.KindCompletion,
		Provider:     providerName,
		Model:        pu.Model,
		InputTokens:  pu.Usage.InputTokens,
		OutputTokens: pu.Usage.OutputTokens,
		TotalTokens:  pu.Usage.TotalTokens,
		Duration:     time.Since(start),
	}
	if pu.Cost != nil {
		r.Cost = pu.Cost.String()
	}
	return r
}

// recordingProvider writes a completion record for every successful call of
// the wrapped provider.
type recordingProvider struct {
	provider.Provider
	store  Store
	logger *slog.Logger
}

// RecordCompletions wraps p so that each successful Complete is appended to
// store. A ledger write failure is logged; the completion still succeeds.
func RecordCompletions(p provider.Provider, store Store, logger *slog.Logger) provider.Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &recordingProvider{Provider: p, store: store, logger: logger}
}

func (p *recordingProvider) Complete(ctx context.Context, system string, messages []message.Message, tools []message.Tool) (message.Message, provider.ProviderUsage, error) {
	start := time.Now()
	msg, pu, err := p.Provider.Complete(ctx, system, messages, tools)
	if err != nil {
		return msg, pu, err
	}
	if werr := p.store.Write(ctx, CompletionRecord(p.Name(), pu, start)); werr != nil {
		p.logger.Error("recording completion", "provider", p.Name(), "model", pu.Model, "error", werr)
	}
	return msg, pu, nil
}
