package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roamnest/roamnest-backend/pkg/enums"
	"github.com/roamnest/roamnest-backend/pkg/errors"
)

// Request describes one settlement call. IdempotencyKey must be stable
// across retries of the same logical payout; providers dedupe on it.
type Request struct {
	Provider          enums.PayoutProvider
	ProviderAccountID string
	Amount            decimal.Decimal
	Currency          enums.Currency
	IdempotencyKey    string
	Description       string
}

func (r Request) validate() error {
	if !r.Provider.IsValid() {
		return errors.New(errors.CodeValidation, fmt.Sprintf("unknown payout provider %q", r.Provider))
	}
	if !r.Amount.IsPositive() {
		return errors.New(errors.CodeValidation, "payout amount must be positive")
	}
	if !r.Currency.IsValid() {
		return errors.New(errors.CodeValidation, fmt.Sprintf("unsupported currency %q", r.Currency))
	}
	if r.IdempotencyKey == "" {
		return errors.New(errors.CodeValidation, "idempotency key is required")
	}
	return nil
}

// Result is the provider's settlement outcome.
type Result struct {
	Status           string
	ProviderPayoutID string
	PaidAt           time.Time
	Raw              string
}

// StatusPaid is the only success status an adapter returns.
const StatusPaid = "paid"

// Adapter abstracts one external settlement rail.
type Adapter interface {
	SendPayout(ctx context.Context, req Request) (Result, error)
}

// Registry dispatches settlement requests to per-provider adapters.
type Registry struct {
	adapters map[enums.PayoutProvider]Adapter
}

// NewRegistry builds a registry over the given adapters.
func NewRegistry(adapters map[enums.PayoutProvider]Adapter) *Registry {
	if adapters == nil {
		adapters = map[enums.PayoutProvider]Adapter{}
	}
	return &Registry{adapters: adapters}
}

// SendPayout validates the request and routes it to the matching adapter.
// Providers without a configured adapter fail with a dependency error so
// the sweep records them as failed groups rather than crashing.
func (r *Registry) SendPayout(ctx context.Context, req Request) (Result, error) {
	if err := req.validate(); err != nil {
		return Result{}, err
	}
	adapter, ok := r.adapters[req.Provider]
	if !ok {
		return Result{}, errors.New(errors.CodeDependency, fmt.Sprintf("payout provider %s is not configured", req.Provider))
	}
	return adapter.SendPayout(ctx, req)
}
