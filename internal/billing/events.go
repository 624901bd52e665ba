package billing

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"astra-agent/internal/store"
)

// ErrUnknownPlan marks a billing event referencing a plan outside the
// catalogue.
var ErrUnknownPlan = errors.New("unknown subscription plan")

// SubscriptionPastDue is written to the profile when a renewal payment
// fails.
const SubscriptionPastDue = "past_due"

type Plan struct {
	Credits        int
	TokenAllowance int64
}

// Plans is the subscription catalogue; credits are granted per paid
// invoice.
var Plans = map[string]Plan{
	"basic":    {Credits: 2000, TokenAllowance: 2_000_000},
	"standard": {Credits: 6000, TokenAllowance: 6_000_000},
	"premium":  {Credits: 10000, TokenAllowance: 10_000_000},
}

type EventType string

const (
	EventInvoicePaid       EventType = "invoice.paid"
	EventPaymentFailed     EventType = "invoice.payment_failed"
	EventCheckoutCompleted EventType = "checkout.session.completed"
	EventPurchaseCompleted EventType = "purchase.completed"
)

// Event is an inbound billing notification. Webhook transport and signature
// verification happen upstream; by the time an Event reaches the processor
// it is trusted.
type Event struct {
	Type      EventType
	UserID    string
	Plan      string
	AmountUSD float64
}

// Processor applies billing events to subscription state and the ledger.
type Processor struct {
	ledger *Ledger
	store  *store.Store
	log    *zap.Logger
}

func NewProcessor(ledger *Ledger, st *store.Store, log *zap.Logger) *Processor {
	return &Processor{ledger: ledger, store: st, log: log}
}

func (p *Processor) Handle(ctx context.Context, ev Event) error {
	switch ev.Type {
	case EventInvoicePaid:
		plan, ok := Plans[ev.Plan]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownPlan, ev.Plan)
		}
		if err := p.store.UpdateSubscription(ctx, ev.UserID, ev.Plan); err != nil {
			return err
		}
		if err := p.ledger.Increment(ctx, ev.UserID, plan.Credits); err != nil {
			return err
		}
		p.log.Info("subscription invoice paid", zap.String("user_id", ev.UserID),
			zap.String("plan", ev.Plan), zap.Int("credits", plan.Credits))
		return nil

	case EventPaymentFailed:
		p.log.Warn("subscription payment failed", zap.String("user_id", ev.UserID))
		return p.store.UpdateSubscription(ctx, ev.UserID, SubscriptionPastDue)

	case EventPurchaseCompleted:
		credits := CreditsForPurchase(ev.AmountUSD)
		if credits == 0 {
			return fmt.Errorf("purchase of %.4f USD grants no credits", ev.AmountUSD)
		}
		return p.ledger.Increment(ctx, ev.UserID, credits)

	case EventCheckoutCompleted:
		p.log.Info("checkout session completed", zap.String("user_id", ev.UserID))
		return nil

	default:
		return fmt.Errorf("unhandled billing event type %q", ev.Type)
	}
}
