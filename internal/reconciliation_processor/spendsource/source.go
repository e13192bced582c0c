// Package spendsource resolves platform-reported spend figures for a
// reconciliation job. Each batch names its source: figures submitted by an
// operator, fetched from the platform's reporting API, or read from an
// uploaded billing export.
package spendsource

import (
	"context"
	"fmt"

	"github.com/adspend-finance-core/internal/domain/money"
	"github.com/adspend-finance-core/internal/domain/reconciliation"
)

// Resolver loads the platform spend figures for a job, keyed by account ID.
// Accounts absent from the returned map had no figure available and are
// flagged as unresolved; a returned error means the source itself failed
// and the batch cannot proceed.
type Resolver interface {
	Resolve(ctx context.Context, job *reconciliation.Job) (map[string]money.Amount, error)
}

// Selector dispatches to the resolver matching the job's spend source.
type Selector struct {
	manual Resolver
	api    Resolver
	file   Resolver
}

// NewSelector creates a selector over the three source implementations
func NewSelector(manual, api, file Resolver) *Selector {
	return &Selector{
		manual: manual,
		api:    api,
		file:   file,
	}
}

// Resolve delegates to the resolver for the job's source
func (s *Selector) Resolve(ctx context.Context, job *reconciliation.Job) (map[string]money.Amount, error) {
	switch job.Source {
	case reconciliation.SpendSourceManual:
		return s.manual.Resolve(ctx, job)
	case reconciliation.SpendSourceAPI:
		return s.api.Resolve(ctx, job)
	case reconciliation.SpendSourceFile:
		return s.file.Resolve(ctx, job)
	default:
		return nil, fmt.Errorf("unknown platform spend source: %q", job.Source)
	}
}
