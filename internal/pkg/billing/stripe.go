package billing

import (
	"context"
	"errors"
	"strings"

	"github.com/archiprisma/memberops/internal/pkg/entitlements"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// StripeClient wraps the Stripe API for the operations this service needs.
// It satisfies entitlements.SubscriptionLister.
type StripeClient struct {
	api *client.API
}

// NewStripeClient builds a client bound to the mode-scoped secret key.
func NewStripeClient(secretKey string) *StripeClient {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeClient{api: api}
}

// API exposes the raw Stripe client for call sites with one-off needs.
func (c *StripeClient) API() *client.API {
	return c.api
}

// ListByCustomer returns every subscription of the customer regardless of
// status, with line-item prices and product names resolved.
func (c *StripeClient) ListByCustomer(ctx context.Context, customerID string) ([]entitlements.Subscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("all"),
	}
	params.Context = ctx
	params.AddExpand("data.items.data.price.product")

	var out []entitlements.Subscription
	iter := c.api.Subscriptions.List(params)
	for iter.Next() {
		out = append(out, toSubscriptionView(iter.Subscription()))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func toSubscriptionView(sub *stripe.Subscription) entitlements.Subscription {
	view := entitlements.Subscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item.Price != nil {
				view.PriceIDs = append(view.PriceIDs, item.Price.ID)
				if item.Price.Product != nil && item.Price.Product.Name != "" {
					view.ProductNames = append(view.ProductNames, item.Price.Product.Name)
				}
			}
			if item.CurrentPeriodEnd > 0 {
				end := unixTime(item.CurrentPeriodEnd)
				if view.CurrentPeriodEnd == nil || end.After(*view.CurrentPeriodEnd) {
					view.CurrentPeriodEnd = &end
				}
			}
		}
	}
	return view
}

// FindCustomerByEmail returns the first customer with the email, or nil.
func (c *StripeClient) FindCustomerByEmail(ctx context.Context, email string) (*stripe.Customer, error) {
	params := &stripe.CustomerListParams{Email: stripe.String(strings.TrimSpace(email))}
	params.Context = ctx
	params.Limit = stripe.Int64(1)

	iter := c.api.Customers.List(params)
	if iter.Next() {
		return iter.Customer(), nil
	}
	return nil, iter.Err()
}

// FindCustomerIDByEmail resolves an email to a customer ID, or empty.
func (c *StripeClient) FindCustomerIDByEmail(ctx context.Context, email string) (string, error) {
	customer, err := c.FindCustomerByEmail(ctx, email)
	if err != nil || customer == nil {
		return "", err
	}
	return customer.ID, nil
}

// GetCustomer fetches a customer by ID.
func (c *StripeClient) GetCustomer(ctx context.Context, customerID string) (*stripe.Customer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	return c.api.Customers.Get(customerID, params)
}

// CreateCustomer creates a customer with an optional display name.
func (c *StripeClient) CreateCustomer(ctx context.Context, email, name string) (*stripe.Customer, error) {
	params := &stripe.CustomerParams{Email: stripe.String(strings.TrimSpace(email))}
	params.Context = ctx
	if n := strings.TrimSpace(name); n != "" {
		params.Name = stripe.String(n)
	}
	return c.api.Customers.New(params)
}

// UpdateCustomerName sets the customer display name.
func (c *StripeClient) UpdateCustomerName(ctx context.Context, customerID, name string) error {
	params := &stripe.CustomerParams{Name: stripe.String(strings.TrimSpace(name))}
	params.Context = ctx
	_, err := c.api.Customers.Update(customerID, params)
	return err
}

// SetCustomerMetadata writes a single metadata key on the customer.
func (c *StripeClient) SetCustomerMetadata(ctx context.Context, customerID, key, value string) error {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	params.AddMetadata(key, value)
	_, err := c.api.Customers.Update(customerID, params)
	return err
}

// CreateCheckoutSession opens a new checkout session.
func (c *StripeClient) CreateCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return c.api.CheckoutSessions.New(params)
}

// GetCheckoutSession fetches a checkout session with its customer expanded.
func (c *StripeClient) GetCheckoutSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("customer")
	return c.api.CheckoutSessions.Get(sessionID, params)
}

// LatestCheckoutSession returns the most recent checkout session of the
// customer, or nil when none exists.
func (c *StripeClient) LatestCheckoutSession(ctx context.Context, customerID string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionListParams{Customer: stripe.String(customerID)}
	params.Context = ctx
	params.Limit = stripe.Int64(1)

	iter := c.api.CheckoutSessions.List(params)
	if iter.Next() {
		return iter.CheckoutSession(), nil
	}
	return nil, iter.Err()
}

// CreatePortalSession opens a billing-portal session for the customer.
func (c *StripeClient) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	sess, err := c.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", err
	}
	return sess.URL, nil
}

// CreateOnceCoupon creates a one-off fixed-amount JPY coupon.
func (c *StripeClient) CreateOnceCoupon(ctx context.Context, name string, amountOffJPY int64) (string, error) {
	params := &stripe.CouponParams{
		Name:      stripe.String(name),
		AmountOff: stripe.Int64(amountOffJPY),
		Currency:  stripe.String(string(stripe.CurrencyJPY)),
		Duration:  stripe.String(string(stripe.CouponDurationOnce)),
	}
	params.Context = ctx
	coupon, err := c.api.Coupons.New(params)
	if err != nil {
		return "", err
	}
	return coupon.ID, nil
}

// ApplyCouponToSubscription attaches a coupon as a subscription discount.
func (c *StripeClient) ApplyCouponToSubscription(ctx context.Context, subscriptionID, couponID string) error {
	params := &stripe.SubscriptionParams{
		Discounts: []*stripe.SubscriptionDiscountParams{
			{Coupon: stripe.String(couponID)},
		},
	}
	params.Context = ctx
	_, err := c.api.Subscriptions.Update(subscriptionID, params)
	return err
}

// FirstEntitledSubscriptionID returns the customer's first subscription
// whose status still entitles (active or trialing), or empty.
func (c *StripeClient) FirstEntitledSubscriptionID(ctx context.Context, customerID string) (string, error) {
	subs, err := c.ListByCustomer(ctx, customerID)
	if err != nil {
		return "", err
	}
	for _, sub := range subs {
		if sub.Status == "active" || sub.Status == "trialing" {
			return sub.ID, nil
		}
	}
	return "", nil
}

// LatestInvoice returns the newest invoice of the customer, or nil.
func (c *StripeClient) LatestInvoice(ctx context.Context, customerID string) (*stripe.Invoice, error) {
	params := &stripe.InvoiceListParams{Customer: stripe.String(customerID)}
	params.Context = ctx
	params.Limit = stripe.Int64(1)

	iter := c.api.Invoices.List(params)
	if iter.Next() {
		return iter.Invoice(), nil
	}
	return nil, iter.Err()
}

// SetInvoiceCompanyField stamps the billing company name onto a draft
// invoice as a visible custom field.
func (c *StripeClient) SetInvoiceCompanyField(ctx context.Context, invoiceID, companyName string) error {
	params := &stripe.InvoiceParams{
		CustomFields: []*stripe.InvoiceCustomFieldParams{
			{Name: stripe.String("Company"), Value: stripe.String(companyName)},
		},
	}
	params.Context = ctx
	_, err := c.api.Invoices.Update(invoiceID, params)
	return err
}

// SetInvoiceMetadata writes metadata on a finalized invoice, which can no
// longer carry new custom fields.
func (c *StripeClient) SetInvoiceMetadata(ctx context.Context, invoiceID, key, value string) error {
	params := &stripe.InvoiceParams{}
	params.Context = ctx
	params.AddMetadata(key, value)
	_, err := c.api.Invoices.Update(invoiceID, params)
	return err
}

// ForEachActiveSubscription pages through all active subscriptions with the
// customer expanded, invoking fn for each. fn returning false stops early.
func (c *StripeClient) ForEachActiveSubscription(ctx context.Context, fn func(*stripe.Subscription) bool) error {
	params := &stripe.SubscriptionListParams{Status: stripe.String(string(stripe.SubscriptionStatusActive))}
	params.Context = ctx
	params.Limit = stripe.Int64(100)
	params.AddExpand("data.customer")

	iter := c.api.Subscriptions.List(params)
	for iter.Next() {
		if !fn(iter.Subscription()) {
			return nil
		}
	}
	return iter.Err()
}

// CountActiveEntitled counts active subscriptions holding an allow-listed
// price.
func (c *StripeClient) CountActiveEntitled(ctx context.Context, allowed map[string]struct{}) (int, error) {
	count := 0
	err := c.ForEachActiveSubscription(ctx, func(sub *stripe.Subscription) bool {
		if sub.Items == nil {
			return true
		}
		for _, item := range sub.Items.Data {
			if item.Price == nil {
				continue
			}
			if _, ok := allowed[item.Price.ID]; ok {
				count++
				return true
			}
		}
		return true
	})
	return count, err
}

// ErrNoCustomer marks lookups where no Stripe customer matched.
var ErrNoCustomer = errors.New("no matching customer")
