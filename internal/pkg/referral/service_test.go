package referral

import (
	"context"
	"regexp"
	"testing"

	"github.com/archiprisma/memberops/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type memRepository struct {
	byEmail map[string]*models.ReferralCode
	byCode  map[string]*models.ReferralCode
}

func newMemRepository() *memRepository {
	return &memRepository{
		byEmail: make(map[string]*models.ReferralCode),
		byCode:  make(map[string]*models.ReferralCode),
	}
}

func (m *memRepository) GetByEmail(email string) (*models.ReferralCode, error) {
	if rc, ok := m.byEmail[email]; ok {
		return rc, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memRepository) GetByCode(code string) (*models.ReferralCode, error) {
	if rc, ok := m.byCode[code]; ok {
		// Return a detached copy, as the GORM repository does; the stored
		// record is only mutated through the Increment methods.
		detached := *rc
		return &detached, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memRepository) Create(rc *models.ReferralCode) error {
	m.byEmail[rc.ReferrerEmail] = rc
	m.byCode[rc.Code] = rc
	return nil
}

func (m *memRepository) IncrementReferral(code string) error {
	m.byCode[code].Referrals++
	return nil
}

func (m *memRepository) IncrementRewards(code string) error {
	m.byCode[code].RewardsClaimed++
	return nil
}

type stubGateway struct {
	customerID string
	couponErr  error
	subID      string
	applied    []string
}

func (s *stubGateway) FindCustomerIDByEmail(ctx context.Context, email string) (string, error) {
	return s.customerID, nil
}

func (s *stubGateway) CreateOnceCoupon(ctx context.Context, name string, amountOffJPY int64) (string, error) {
	if s.couponErr != nil {
		return "", s.couponErr
	}
	return "coupon_" + name, nil
}

func (s *stubGateway) FirstEntitledSubscriptionID(ctx context.Context, customerID string) (string, error) {
	return s.subID, nil
}

func (s *stubGateway) ApplyCouponToSubscription(ctx context.Context, subscriptionID, couponID string) error {
	s.applied = append(s.applied, subscriptionID+":"+couponID)
	return nil
}

var codePattern = regexp.MustCompile(`^REF-[A-Z0-9]{1,4}-[0-9A-F]{6}$`)

func TestGenerateIsIdempotentPerEmail(t *testing.T) {
	svc := NewService(newMemRepository(), &stubGateway{customerID: "cus_1"})

	first, err := svc.Generate(context.Background(), "Taro.Yamada@example.com")
	require.NoError(t, err)
	assert.Regexp(t, codePattern, first.Code)
	assert.Equal(t, "taro.yamada@example.com", first.ReferrerEmail)
	assert.Equal(t, "cus_1", first.ReferrerCustomerID)
	assert.NotEmpty(t, first.CouponID)

	second, err := svc.Generate(context.Background(), "taro.yamada@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.Code, second.Code)
}

func TestGenerateToleratesCouponFailure(t *testing.T) {
	svc := NewService(newMemRepository(), &stubGateway{couponErr: assert.AnError})

	rc, err := svc.Generate(context.Background(), "taro@example.com")
	require.NoError(t, err)
	assert.Empty(t, rc.CouponID)
	assert.Regexp(t, codePattern, rc.Code)
}

func TestCompleteIncrementsAndRewards(t *testing.T) {
	repo := newMemRepository()
	gw := &stubGateway{customerID: "cus_ref", subID: "sub_ref"}
	svc := NewService(repo, gw)

	rc, err := svc.Generate(context.Background(), "taro@example.com")
	require.NoError(t, err)

	done, err := svc.Complete(context.Background(), rc.Code, "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, done.Referrals)
	assert.Equal(t, 1, done.RewardsClaimed)
	require.Len(t, gw.applied, 1)
	assert.Contains(t, gw.applied[0], "sub_ref:")
}

func TestCompleteWithoutActiveSubscriptionStillCounts(t *testing.T) {
	repo := newMemRepository()
	gw := &stubGateway{customerID: "cus_ref", subID: ""}
	svc := NewService(repo, gw)

	rc, err := svc.Generate(context.Background(), "taro@example.com")
	require.NoError(t, err)

	done, err := svc.Complete(context.Background(), rc.Code, "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, done.Referrals)
	assert.Equal(t, 0, done.RewardsClaimed)
	assert.Empty(t, gw.applied)
}

func TestVerifyUnknownCode(t *testing.T) {
	svc := NewService(newMemRepository(), &stubGateway{})

	_, err := svc.Verify(context.Background(), "REF-NOPE-000000")
	assert.ErrorIs(t, err, ErrCodeNotFound)
}

func TestBuildCodeFallsBackForEmptyLocalPart(t *testing.T) {
	code, err := buildCode("----@example.com")
	require.NoError(t, err)
	assert.Regexp(t, `^REF-ARCHI-[0-9A-F]{6}$`, code)
}
