package entitlements

import (
	"context"
	"fmt"
	"time"
)

// Subscription is the provider-neutral view the evaluator reasons about.
type Subscription struct {
	ID                string
	Status            string
	CancelAtPeriodEnd bool
	CurrentPeriodEnd  *time.Time
	PriceIDs          []string
	ProductNames      []string
}

// SubscriptionLister returns every subscription of a billing customer,
// regardless of status.
type SubscriptionLister interface {
	ListByCustomer(ctx context.Context, customerID string) ([]Subscription, error)
}

// BillingQueryError marks an entitlement decision that could not be made
// because the billing provider query failed. Callers must keep the current
// role state instead of treating the customer as unentitled.
type BillingQueryError struct {
	CustomerID string
	Err        error
}

func (e *BillingQueryError) Error() string {
	return fmt.Sprintf("billing query for customer %s failed: %v", e.CustomerID, e.Err)
}

func (e *BillingQueryError) Unwrap() error {
	return e.Err
}

// CustomerState is the evaluated snapshot used for reporting.
type CustomerState struct {
	CustomerID        string
	Entitled          bool
	SubscriptionID    string
	Status            string
	CancelAtPeriodEnd bool
	CurrentPeriodEnd  *time.Time
	PriceIDs          []string
	ProductNames      []string
}

// Evaluator decides whether a customer currently holds a paid entitlement.
type Evaluator struct {
	lister  SubscriptionLister
	allowed map[string]struct{}
}

// NewEvaluator builds an evaluator over the given price allow-list.
func NewEvaluator(lister SubscriptionLister, allowedPriceIDs map[string]struct{}) *Evaluator {
	return &Evaluator{lister: lister, allowed: allowedPriceIDs}
}

// IsEntitled reports whether any of the customer's subscriptions carries an
// allow-listed price, is active or trialing, and is not set to cancel at
// period end. A provider query failure returns a *BillingQueryError and
// never a default answer.
func (e *Evaluator) IsEntitled(ctx context.Context, customerID string) (bool, error) {
	subs, err := e.lister.ListByCustomer(ctx, customerID)
	if err != nil {
		return false, &BillingQueryError{CustomerID: customerID, Err: err}
	}
	for _, sub := range subs {
		if e.entitles(sub) {
			return true, nil
		}
	}
	return false, nil
}

// Snapshot evaluates entitlement and returns the subscription details of
// the winning (or most recent) subscription for reporting.
func (e *Evaluator) Snapshot(ctx context.Context, customerID string) (*CustomerState, error) {
	subs, err := e.lister.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, &BillingQueryError{CustomerID: customerID, Err: err}
	}

	state := &CustomerState{CustomerID: customerID}
	for _, sub := range subs {
		entitles := e.entitles(sub)
		// Prefer the entitling subscription; otherwise keep the first match
		// on the allow-list so canceled states still show up in reports.
		if entitles || (!state.Entitled && state.SubscriptionID == "" && e.holdsAllowedPrice(sub)) {
			state.SubscriptionID = sub.ID
			state.Status = sub.Status
			state.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
			state.CurrentPeriodEnd = sub.CurrentPeriodEnd
			state.PriceIDs = sub.PriceIDs
			state.ProductNames = sub.ProductNames
		}
		if entitles {
			state.Entitled = true
			break
		}
	}
	return state, nil
}

func (e *Evaluator) entitles(sub Subscription) bool {
	if !e.holdsAllowedPrice(sub) {
		return false
	}
	if sub.CancelAtPeriodEnd {
		return false
	}
	return sub.Status == "active" || sub.Status == "trialing"
}

func (e *Evaluator) holdsAllowedPrice(sub Subscription) bool {
	for _, priceID := range sub.PriceIDs {
		if _, ok := e.allowed[priceID]; ok {
			return true
		}
	}
	return false
}
