package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/transfer"

	"github.com/roamnest/roamnest-backend/pkg/enums"
	"github.com/roamnest/roamnest-backend/pkg/errors"
	pkgstripe "github.com/roamnest/roamnest-backend/pkg/stripe"
)

// stripeTransferClient is the subset of Stripe operations the adapter needs,
// narrowed so tests can stub the network call.
type stripeTransferClient interface {
	Create(ctx context.Context, params *stripe.TransferParams) (*stripe.Transfer, error)
}

type stripeClientWrapper struct{}

func (stripeClientWrapper) Create(ctx context.Context, params *stripe.TransferParams) (*stripe.Transfer, error) {
	if params != nil {
		params.Context = ctx
	}
	return transfer.New(params)
}

// StripeAdapter settles payouts as Stripe transfers to connected accounts.
type StripeAdapter struct {
	client stripeTransferClient
	now    func() time.Time
}

// NewStripeAdapter builds the adapter over an initialized Stripe client.
func NewStripeAdapter(api *pkgstripe.Client) (*StripeAdapter, error) {
	if api == nil || api.API() == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	return &StripeAdapter{
		client: stripeClientWrapper{},
		now:    time.Now,
	}, nil
}

func (a *StripeAdapter) SendPayout(ctx context.Context, req Request) (Result, error) {
	if err := req.validate(); err != nil {
		return Result{}, err
	}
	if req.ProviderAccountID == "" {
		return Result{}, errors.New(errors.CodeValidation, "stripe connected account id is required")
	}

	params := &stripe.TransferParams{
		Amount:      stripe.Int64(minorUnits(req.Amount, req.Currency)),
		Currency:    stripe.String(strings.ToLower(string(req.Currency))),
		Destination: stripe.String(req.ProviderAccountID),
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	params.SetIdempotencyKey(req.IdempotencyKey)

	tr, err := a.client.Create(ctx, params)
	if err != nil {
		return Result{}, errors.Wrap(errors.CodeDependency, err, "stripe transfer failed")
	}

	paidAt := a.now().UTC()
	if tr.Created > 0 {
		paidAt = time.Unix(tr.Created, 0).UTC()
	}
	return Result{
		Status:           StatusPaid,
		ProviderPayoutID: tr.ID,
		PaidAt:           paidAt,
		Raw:              fmt.Sprintf(`{"transfer_id":"%s"}`, tr.ID),
	}, nil
}

// minorUnits converts a decimal amount into the smallest currency unit
// Stripe expects. JPY has no minor unit.
func minorUnits(amount decimal.Decimal, currency enums.Currency) int64 {
	if currency == enums.CurrencyJPY {
		return amount.Round(0).IntPart()
	}
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
