package entitlements

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLister struct {
	subs []Subscription
	err  error
}

func (s *stubLister) ListByCustomer(ctx context.Context, customerID string) ([]Subscription, error) {
	return s.subs, s.err
}

func allow(ids ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

func TestIsEntitled(t *testing.T) {
	tests := []struct {
		name string
		subs []Subscription
		want bool
	}{
		{
			name: "active allowed price",
			subs: []Subscription{{ID: "sub_1", Status: "active", PriceIDs: []string{"price_monthly"}}},
			want: true,
		},
		{
			name: "trialing allowed price",
			subs: []Subscription{{ID: "sub_1", Status: "trialing", PriceIDs: []string{"price_yearly"}}},
			want: true,
		},
		{
			name: "cancel at period end loses entitlement",
			subs: []Subscription{{ID: "sub_1", Status: "active", CancelAtPeriodEnd: true, PriceIDs: []string{"price_monthly"}}},
			want: false,
		},
		{
			name: "past due loses entitlement",
			subs: []Subscription{{ID: "sub_1", Status: "past_due", PriceIDs: []string{"price_monthly"}}},
			want: false,
		},
		{
			name: "active but unlisted price",
			subs: []Subscription{{ID: "sub_1", Status: "active", PriceIDs: []string{"price_other"}}},
			want: false,
		},
		{
			name: "any entitling subscription wins",
			subs: []Subscription{
				{ID: "sub_1", Status: "canceled", PriceIDs: []string{"price_monthly"}},
				{ID: "sub_2", Status: "active", PriceIDs: []string{"price_yearly"}},
			},
			want: true,
		},
		{
			name: "no subscriptions",
			subs: nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := NewEvaluator(&stubLister{subs: tt.subs}, allow("price_monthly", "price_yearly"))
			got, err := ev.IsEntitled(context.Background(), "cus_123")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsEntitledQueryFailure(t *testing.T) {
	ev := NewEvaluator(&stubLister{err: errors.New("api down")}, allow("price_monthly"))

	got, err := ev.IsEntitled(context.Background(), "cus_123")
	require.Error(t, err)
	assert.False(t, got)

	var qerr *BillingQueryError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, "cus_123", qerr.CustomerID)
}

func TestSnapshotPrefersEntitlingSubscription(t *testing.T) {
	ev := NewEvaluator(&stubLister{subs: []Subscription{
		{ID: "sub_old", Status: "canceled", PriceIDs: []string{"price_monthly"}},
		{ID: "sub_new", Status: "active", PriceIDs: []string{"price_yearly"}},
	}}, allow("price_monthly", "price_yearly"))

	state, err := ev.Snapshot(context.Background(), "cus_123")
	require.NoError(t, err)
	assert.True(t, state.Entitled)
	assert.Equal(t, "sub_new", state.SubscriptionID)
	assert.Equal(t, "active", state.Status)
}

func TestSnapshotKeepsCanceledDetailsWhenNothingEntitles(t *testing.T) {
	ev := NewEvaluator(&stubLister{subs: []Subscription{
		{ID: "sub_old", Status: "canceled", PriceIDs: []string{"price_monthly"}},
	}}, allow("price_monthly"))

	state, err := ev.Snapshot(context.Background(), "cus_123")
	require.NoError(t, err)
	assert.False(t, state.Entitled)
	assert.Equal(t, "sub_old", state.SubscriptionID)
	assert.Equal(t, "canceled", state.Status)
}
