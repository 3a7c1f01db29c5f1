package provider

import (
	"context"
	"fmt"
	"time"
)

// Sandbox short-circuits settlement with a synthetic success so the whole
// sweep pipeline runs without moving real money. The idempotency key is
// still threaded into the synthetic payout id, matching how a real provider
// would dedupe retried calls.
type Sandbox struct {
	now func() time.Time
}

// NewSandbox builds a sandbox adapter.
func NewSandbox(now func() time.Time) *Sandbox {
	if now == nil {
		now = time.Now
	}
	return &Sandbox{now: now}
}

func (s *Sandbox) SendPayout(ctx context.Context, req Request) (Result, error) {
	if err := req.validate(); err != nil {
		return Result{}, err
	}
	paidAt := s.now().UTC()
	return Result{
		Status:           StatusPaid,
		ProviderPayoutID: "sandbox_" + req.IdempotencyKey,
		PaidAt:           paidAt,
		Raw:              fmt.Sprintf(`{"sandbox":true,"amount":"%s","currency":"%s"}`, req.Amount.StringFixed(2), req.Currency),
	}, nil
}
