package billing

import (
	"context"
	"testing"

	"github.com/archiprisma/memberops/internal/pkg/entitlements"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go/v82"
)

type fakeCheckoutGateway struct {
	customer *stripe.Customer
	subs     []entitlements.Subscription

	createdCustomers int
	sessionCalls     int
	lastParams       *stripe.CheckoutSessionParams
}

func (g *fakeCheckoutGateway) FindCustomerByEmail(ctx context.Context, email string) (*stripe.Customer, error) {
	return g.customer, nil
}

func (g *fakeCheckoutGateway) CreateCustomer(ctx context.Context, email, name string) (*stripe.Customer, error) {
	g.createdCustomers++
	return &stripe.Customer{ID: "cus_new", Email: email}, nil
}

func (g *fakeCheckoutGateway) UpdateCustomerName(ctx context.Context, customerID, name string) error {
	return nil
}

func (g *fakeCheckoutGateway) ListByCustomer(ctx context.Context, customerID string) ([]entitlements.Subscription, error) {
	return g.subs, nil
}

func (g *fakeCheckoutGateway) CreateCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	g.sessionCalls++
	g.lastParams = params
	return &stripe.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/cs_1"}, nil
}

func testPlans() PricePlan {
	return PricePlan{Monthly: "price_monthly", Yearly: "price_yearly", Student: "price_student"}
}

func testAllowed() map[string]struct{} {
	return map[string]struct{}{
		"price_monthly": {},
		"price_yearly":  {},
		"price_student": {},
	}
}

func TestCreateSessionRejectsDuplicateSubscription(t *testing.T) {
	tests := []struct {
		name   string
		status string
	}{
		{name: "active subscription", status: "active"},
		{name: "trialing subscription", status: "trialing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeCheckoutGateway{
				customer: &stripe.Customer{ID: "cus_1", Email: "member@example.com"},
				subs: []entitlements.Subscription{
					{ID: "sub_1", Status: tt.status, PriceIDs: []string{"price_monthly"}},
				},
			}
			svc := NewCheckoutService(gw, testPlans(), testAllowed(), nil)

			_, err := svc.CreateSession(context.Background(), CheckoutInput{
				Email:   "member@example.com",
				BaseURL: "https://example.com",
			})
			require.ErrorIs(t, err, ErrDuplicateSubscription)
			assert.Zero(t, gw.sessionCalls)
		})
	}
}

func TestCreateSessionAllowsLapsedCustomer(t *testing.T) {
	gw := &fakeCheckoutGateway{
		customer: &stripe.Customer{ID: "cus_1", Email: "member@example.com"},
		subs: []entitlements.Subscription{
			{ID: "sub_1", Status: "canceled", PriceIDs: []string{"price_monthly"}},
			{ID: "sub_2", Status: "active", PriceIDs: []string{"price_unrelated"}},
		},
	}
	svc := NewCheckoutService(gw, testPlans(), testAllowed(), nil)

	result, err := svc.CreateSession(context.Background(), CheckoutInput{
		Email:   "member@example.com",
		BaseURL: "https://example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, gw.sessionCalls)
	assert.Equal(t, "cs_1", result.SessionID)
}

func TestCreateSessionCreatesNewCustomer(t *testing.T) {
	gw := &fakeCheckoutGateway{}
	svc := NewCheckoutService(gw, testPlans(), testAllowed(), nil)

	result, err := svc.CreateSession(context.Background(), CheckoutInput{
		Email:   "fresh@example.com",
		BaseURL: "https://example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, gw.createdCustomers)
	assert.Equal(t, 1, gw.sessionCalls)
	assert.Equal(t, "https://checkout.stripe.com/cs_1", result.URL)
}

func TestCreateSessionStudentDefaultPrice(t *testing.T) {
	gw := &fakeCheckoutGateway{}
	svc := NewCheckoutService(gw, testPlans(), testAllowed(), nil)

	_, err := svc.CreateSession(context.Background(), CheckoutInput{
		Email:   "student@waseda.ac.jp",
		BaseURL: "https://example.com",
	})
	require.NoError(t, err)
	require.NotNil(t, gw.lastParams)
	require.Len(t, gw.lastParams.LineItems, 1)
	assert.Equal(t, "price_student", stripe.StringValue(gw.lastParams.LineItems[0].Price))
}
