package subscription

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/intopays/subpay/internal/app/service/payment"
	"github.com/intopays/subpay/internal/models"
	"github.com/intopays/subpay/pkg/apperr"
	"github.com/intopays/subpay/pkg/config"
	"github.com/intopays/subpay/pkg/token"
	"github.com/intopays/subpay/pkg/types"
)

// memStore is an in-memory Store with the same version-conditional update
// semantics as the gorm implementation.
type memStore struct {
	mu      sync.Mutex
	subs    map[string]*models.Subscription
	deleted map[string]bool
	// conflictNext forces that many updates to fail with ErrConflict.
	conflictNext int
	updateCalls  int
}

func newMemStore() *memStore {
	return &memStore{subs: map[string]*models.Subscription{}, deleted: map[string]bool{}}
}

func (m *memStore) Create(_ context.Context, sub *models.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.subs {
		if existing.CorrelationCode == sub.CorrelationCode {
			return fmt.Errorf("duplicate correlation code: %w", apperr.ErrConflict)
		}
	}
	cp := *sub
	m.subs[sub.ID] = &cp
	return nil
}

func (m *memStore) Update(_ context.Context, sub *models.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	if m.conflictNext > 0 {
		m.conflictNext--
		return fmt.Errorf("stale version: %w", apperr.ErrConflict)
	}
	stored, ok := m.subs[sub.ID]
	if !ok || stored.Version != sub.Version {
		return fmt.Errorf("stale version: %w", apperr.ErrConflict)
	}
	cp := *sub
	cp.Version++
	m.subs[sub.ID] = &cp
	sub.Version = cp.Version
	return nil
}

func (m *memStore) SoftDelete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted[id] = true
	return nil
}

func (m *memStore) find(pred func(*models.Subscription) bool, includeDeleted bool) (*models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, sub := range m.subs {
		if !includeDeleted && m.deleted[id] {
			continue
		}
		if pred(sub) {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("subscription: %w", apperr.ErrNotFound)
}

func (m *memStore) FindByID(_ context.Context, id string) (*models.Subscription, error) {
	return m.find(func(s *models.Subscription) bool { return s.ID == id }, false)
}

func (m *memStore) FindByCorrelationCode(_ context.Context, code string) (*models.Subscription, error) {
	return m.find(func(s *models.Subscription) bool { return s.CorrelationCode == code }, false)
}

// The webhook-path lookups see soft-deleted records: an explicitly cancelled
// subscription still has a provider confirmation coming.
func (m *memStore) FindBySessionCode(_ context.Context, code string) (*models.Subscription, error) {
	return m.find(func(s *models.Subscription) bool { return s.ProviderSessionCode == code }, true)
}

func (m *memStore) FindByProviderSubscriptionCode(_ context.Context, code string) (*models.Subscription, error) {
	return m.find(func(s *models.Subscription) bool { return s.ProviderSubscriptionCode == code }, true)
}

func (m *memStore) ListByAccount(_ context.Context, accountID string, status types.SubscriptionStatus) ([]*models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Subscription
	for id, sub := range m.subs {
		if m.deleted[id] || sub.AccountID != accountID {
			continue
		}
		if status != "" && sub.Status != status {
			continue
		}
		cp := *sub
		out = append(out, &cp)
	}
	return out, nil
}

// fakeProvider records session and cancel calls.
type fakeProvider struct {
	payment.Provider
	sessions  []payment.CreateSessionParams
	cancelled []string
}

func (f *fakeProvider) CreateSubscriptionSession(_ context.Context, params payment.CreateSessionParams) (*payment.Session, error) {
	f.sessions = append(f.sessions, params)
	return &payment.Session{Code: fmt.Sprintf("cs_%d", len(f.sessions))}, nil
}

func (f *fakeProvider) CancelSubscription(_ context.Context, code string) (string, error) {
	f.cancelled = append(f.cancelled, code)
	return code, nil
}

type fakePrices map[string]*models.ProductPrice

func (f fakePrices) FindPrice(_ context.Context, id string) (*models.ProductPrice, error) {
	if p, ok := f[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("price %s: %w", id, apperr.ErrNotFound)
}

func testPrice(id string) *models.ProductPrice {
	return &models.ProductPrice{
		ID:              id,
		Amount:          990,
		Currency:        types.CurrencyBRL,
		Interval:        types.PriceIntervalOnGoing,
		IntervalPeriod:  types.PriceIntervalPeriodMonth,
		IntegrationCode: "price_" + id,
		ProductID:       "prod-1",
	}
}

func newTestService(cfg *config.Config) (*Service, *memStore, *fakeProvider, *token.Signer) {
	if cfg == nil {
		cfg = &config.Config{}
	}
	cfg.Stripe.PublicKey = "pk_test_123"
	cfg.Web.RedirectPaymentURL = "https://app.example.com/v1/redirect-payment"
	store := newMemStore()
	provider := &fakeProvider{}
	signer := token.NewSigner("test-secret", time.Hour)
	svc := NewService(store, fakePrices{"price-42": testPrice("price-42")}, provider, signer, cfg, zap.NewNop().Sugar(), nil)
	return svc, store, provider, signer
}

func account(id string) *models.Account {
	return &models.Account{ID: id, Role: types.PermissionRoleCustomer}
}

func TestCreate_NewSubscription(t *testing.T) {
	svc, store, provider, signer := newTestService(nil)

	res, err := svc.Create(context.Background(), account("acct-7"), "price-42")
	require.NoError(t, err)

	sub := res.Subscription
	assert.Equal(t, types.SubscriptionStatusProcessing, sub.Status)
	assert.Equal(t, types.ChargeStatusStopped, sub.ChargeStatus)
	assert.Equal(t, "acct-7", sub.AccountID)
	assert.NotEmpty(t, sub.CorrelationCode)
	assert.Equal(t, "cs_1", sub.ProviderSessionCode)
	assert.Empty(t, sub.ProviderSubscriptionCode)

	stored, err := store.FindByID(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, sub.CorrelationCode, stored.CorrelationCode)

	// the provider saw two signed tokens differing only in target status,
	// both tied to the record's correlation code
	require.Len(t, provider.sessions, 1)
	success, err := signer.Verify(provider.sessions[0].SuccessToken)
	require.NoError(t, err)
	cancel, err := signer.Verify(provider.sessions[0].CancelToken)
	require.NoError(t, err)
	assert.NotEqual(t, provider.sessions[0].SuccessToken, provider.sessions[0].CancelToken)
	assert.Equal(t, sub.CorrelationCode, success.CorrelationCode)
	assert.Equal(t, sub.CorrelationCode, cancel.CorrelationCode)
	assert.Equal(t, string(types.SubscriptionStatusApproved), success.TargetStatus)
	assert.Equal(t, string(types.SubscriptionStatusCanceled), cancel.TargetStatus)
	assert.Equal(t, sub.CorrelationCode, provider.sessions[0].IdempotencyKey)

	// checkout token resolves the renderable page data
	claims, err := signer.Verify(res.CheckoutToken)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, claims.SubscriptionID)
	assert.Equal(t, "pk_test_123", claims.PublicKey)
	assert.Equal(t, "https://app.example.com/v1/redirect-payment/"+res.CheckoutToken, res.RedirectPaymentURL)
}

func TestCreate_UnknownPrice(t *testing.T) {
	svc, _, provider, _ := newTestService(nil)
	_, err := svc.Create(context.Background(), account("acct-7"), "price-missing")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.Empty(t, provider.sessions)
}

func approvedClaims(code string) *token.Claims {
	return &token.Claims{
		PaymentKind:     token.KindSubscription,
		CorrelationCode: code,
		TargetStatus:    string(types.SubscriptionStatusApproved),
	}
}

func TestApplyRedirect_ApproveThenReplay(t *testing.T) {
	svc, store, _, _ := newTestService(nil)
	res, err := svc.Create(context.Background(), account("acct-7"), "price-42")
	require.NoError(t, err)
	code := res.Subscription.CorrelationCode

	sub, err := svc.ApplyRedirect(context.Background(), approvedClaims(code))
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionStatusApproved, sub.Status)
	assert.Equal(t, types.ChargeStatusRunning, sub.ChargeStatus)

	writes := store.updateCalls
	again, err := svc.ApplyRedirect(context.Background(), approvedClaims(code))
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionStatusApproved, again.Status)
	assert.Equal(t, types.ChargeStatusRunning, again.ChargeStatus)
	assert.Equal(t, writes, store.updateCalls, "replay must not write")
}

func TestApplyRedirect_CancelPath(t *testing.T) {
	svc, _, _, _ := newTestService(nil)
	res, err := svc.Create(context.Background(), account("acct-7"), "price-42")
	require.NoError(t, err)

	claims := approvedClaims(res.Subscription.CorrelationCode)
	claims.TargetStatus = string(types.SubscriptionStatusCanceled)
	sub, err := svc.ApplyRedirect(context.Background(), claims)
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionStatusCanceled, sub.Status)
	// a cancel redirect never starts billing
	assert.Equal(t, types.ChargeStatusStopped, sub.ChargeStatus)
}

func TestApplyRedirect_SuccessTokenAfterCancelStaysStopped(t *testing.T) {
	svc, store, _, _ := newTestService(nil)
	res, err := svc.Create(context.Background(), account("acct-7"), "price-42")
	require.NoError(t, err)
	code := res.Subscription.CorrelationCode

	cancel := approvedClaims(code)
	cancel.TargetStatus = string(types.SubscriptionStatusCanceled)
	_, err = svc.ApplyRedirect(context.Background(), cancel)
	require.NoError(t, err)

	// the customer holds both tokens; the success one must not start billing
	// on the record they just cancelled
	writes := store.updateCalls
	sub, err := svc.ApplyRedirect(context.Background(), approvedClaims(code))
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionStatusCanceled, sub.Status)
	assert.Equal(t, types.ChargeStatusStopped, sub.ChargeStatus)
	assert.Equal(t, writes, store.updateCalls, "late success redirect must not write")
}

func TestApplyRedirect_RejectsWrongKindAndTarget(t *testing.T) {
	svc, _, _, _ := newTestService(nil)

	claims := approvedClaims("corr-1")
	claims.PaymentKind = token.KindCheckout
	_, err := svc.ApplyRedirect(context.Background(), claims)
	assert.True(t, errors.Is(err, apperr.ErrInvalidToken))

	claims = approvedClaims("corr-1")
	claims.TargetStatus = string(types.SubscriptionStatusProcessing)
	_, err = svc.ApplyRedirect(context.Background(), claims)
	assert.True(t, errors.Is(err, apperr.ErrInvalidToken))
}

func TestCompleteSession_Idempotent(t *testing.T) {
	svc, store, _, _ := newTestService(nil)
	res, err := svc.Create(context.Background(), account("acct-7"), "price-42")
	require.NoError(t, err)

	sub, err := svc.CompleteSession(context.Background(), res.Subscription.ProviderSessionCode, "sub_999")
	require.NoError(t, err)
	assert.Equal(t, "sub_999", sub.ProviderSubscriptionCode)

	writes := store.updateCalls
	again, err := svc.CompleteSession(context.Background(), res.Subscription.ProviderSessionCode, "sub_999")
	require.NoError(t, err)
	assert.Equal(t, "sub_999", again.ProviderSubscriptionCode)
	assert.Equal(t, writes, store.updateCalls, "redelivery must not write")
}

func TestRedirectAndWebhook_OrderIndependent(t *testing.T) {
	final := func(redirectFirst bool) *models.Subscription {
		svc, _, _, _ := newTestService(nil)
		res, err := svc.Create(context.Background(), account("acct-7"), "price-42")
		require.NoError(t, err)
		code := res.Subscription.CorrelationCode
		session := res.Subscription.ProviderSessionCode

		if redirectFirst {
			_, err = svc.ApplyRedirect(context.Background(), approvedClaims(code))
			require.NoError(t, err)
			_, err = svc.CompleteSession(context.Background(), session, "sub_999")
			require.NoError(t, err)
		} else {
			_, err = svc.CompleteSession(context.Background(), session, "sub_999")
			require.NoError(t, err)
			_, err = svc.ApplyRedirect(context.Background(), approvedClaims(code))
			require.NoError(t, err)
		}
		sub, err := svc.store.FindByID(context.Background(), res.Subscription.ID)
		require.NoError(t, err)
		return sub
	}

	a := final(true)
	b := final(false)
	for _, sub := range []*models.Subscription{a, b} {
		assert.Equal(t, types.SubscriptionStatusApproved, sub.Status)
		assert.Equal(t, types.ChargeStatusRunning, sub.ChargeStatus)
		assert.Equal(t, "sub_999", sub.ProviderSubscriptionCode)
	}
}

func TestCancel_OwnerFlow(t *testing.T) {
	svc, store, provider, _ := newTestService(nil)
	owner := account("acct-7")
	res, err := svc.Create(context.Background(), owner, "price-42")
	require.NoError(t, err)

	_, err = svc.ApplyRedirect(context.Background(), approvedClaims(res.Subscription.CorrelationCode))
	require.NoError(t, err)
	_, err = svc.CompleteSession(context.Background(), res.Subscription.ProviderSessionCode, "sub_999")
	require.NoError(t, err)

	sub, err := svc.Cancel(context.Background(), owner, res.Subscription.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ChargeStatusWaitingCancelation, sub.ChargeStatus)
	assert.Equal(t, types.SubscriptionStatusApproved, sub.Status, "status waits for provider confirmation")
	assert.Equal(t, []string{"sub_999"}, provider.cancelled)
	assert.True(t, store.deleted[sub.ID], "explicit cancellation soft-deletes")

	// provider confirms later via webhook; the soft-deleted record is still
	// reachable by provider subscription code
	confirmed, err := svc.CancelFromProvider(context.Background(), "sub_999")
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionStatusCanceled, confirmed.Status)
	assert.Equal(t, types.ChargeStatusCanceled, confirmed.ChargeStatus)
}

func TestCancel_NonOwnerForbidden(t *testing.T) {
	svc, store, provider, _ := newTestService(nil)
	res, err := svc.Create(context.Background(), account("acct-7"), "price-42")
	require.NoError(t, err)
	writes := store.updateCalls

	_, err = svc.Cancel(context.Background(), account("acct-8"), res.Subscription.ID)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))
	assert.Empty(t, provider.cancelled)
	assert.Equal(t, writes, store.updateCalls)
}

func TestCancel_WithoutProviderSubscription(t *testing.T) {
	svc, _, provider, _ := newTestService(nil)
	owner := account("acct-7")
	res, err := svc.Create(context.Background(), owner, "price-42")
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), owner, res.Subscription.ID)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.Empty(t, provider.cancelled)
}

func TestExpireSession_ConfigurationChoice(t *testing.T) {
	// default: documented no-op
	svc, store, _, _ := newTestService(nil)
	res, err := svc.Create(context.Background(), account("acct-7"), "price-42")
	require.NoError(t, err)
	out, err := svc.ExpireSession(context.Background(), res.Subscription.ProviderSessionCode)
	require.NoError(t, err)
	assert.Nil(t, out)
	sub, err := store.FindByID(context.Background(), res.Subscription.ID)
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionStatusProcessing, sub.Status)

	// opt-in: expired sessions cancel still-processing records
	cfg := &config.Config{}
	cfg.Stripe.CancelExpiredSessions = true
	svc, _, _, _ = newTestService(cfg)
	res, err = svc.Create(context.Background(), account("acct-7"), "price-42")
	require.NoError(t, err)
	out, err = svc.ExpireSession(context.Background(), res.Subscription.ProviderSessionCode)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, types.SubscriptionStatusCanceled, out.Status)
	assert.Equal(t, types.ChargeStatusCanceled, out.ChargeStatus)

	// a late redirect cannot resurrect the cancelled record
	sub, err = svc.ApplyRedirect(context.Background(), approvedClaims(res.Subscription.CorrelationCode))
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionStatusCanceled, sub.Status)
	assert.Equal(t, types.ChargeStatusCanceled, sub.ChargeStatus)
}

func TestTransition_RetriesVersionConflict(t *testing.T) {
	svc, store, _, _ := newTestService(nil)
	res, err := svc.Create(context.Background(), account("acct-7"), "price-42")
	require.NoError(t, err)

	store.conflictNext = 1
	sub, err := svc.ApplyRedirect(context.Background(), approvedClaims(res.Subscription.CorrelationCode))
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionStatusApproved, sub.Status)
}

func TestTransition_SurfacesPersistentConflict(t *testing.T) {
	svc, store, _, _ := newTestService(nil)
	res, err := svc.Create(context.Background(), account("acct-7"), "price-42")
	require.NoError(t, err)

	store.conflictNext = transitionAttempts
	_, err = svc.ApplyRedirect(context.Background(), approvedClaims(res.Subscription.CorrelationCode))
	assert.True(t, errors.Is(err, apperr.ErrConflict))
}

func TestList_FiltersByStatus(t *testing.T) {
	svc, _, _, _ := newTestService(nil)
	owner := account("acct-7")
	first, err := svc.Create(context.Background(), owner, "price-42")
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), owner, "price-42")
	require.NoError(t, err)
	_, err = svc.ApplyRedirect(context.Background(), approvedClaims(first.Subscription.CorrelationCode))
	require.NoError(t, err)

	all, err := svc.List(context.Background(), owner.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	approved, err := svc.List(context.Background(), owner.ID, types.SubscriptionStatusApproved)
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, first.Subscription.ID, approved[0].ID)

	_, err = svc.List(context.Background(), owner.ID, "BOGUS")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestRender_ChecksPaymentKind(t *testing.T) {
	svc, _, _, _ := newTestService(nil)
	res, err := svc.Create(context.Background(), account("acct-7"), "price-42")
	require.NoError(t, err)

	data, err := svc.Render(context.Background(), &token.Claims{
		PaymentKind:    token.KindSubscription,
		SubscriptionID: res.Subscription.ID,
		PublicKey:      "pk_test_123",
	})
	require.NoError(t, err)
	assert.Equal(t, res.Subscription.ProviderSessionCode, data.SessionCode)
	assert.Equal(t, "pk_test_123", data.PublicKey)

	_, err = svc.Render(context.Background(), &token.Claims{PaymentKind: token.KindPayment, SubscriptionID: res.Subscription.ID})
	assert.True(t, errors.Is(err, apperr.ErrInvalidToken))
}
