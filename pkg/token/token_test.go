package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intopays/subpay/pkg/apperr"
)

func TestIssueVerify_RoundTrip(t *testing.T) {
	s := NewSigner("test-secret", time.Hour)

	raw, err := s.Issue(Claims{
		PaymentKind:     KindSubscription,
		CorrelationCode: "corr-123",
		TargetStatus:    "APPROVED",
	})
	require.NoError(t, err)

	claims, err := s.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, KindSubscription, claims.PaymentKind)
	assert.Equal(t, "corr-123", claims.CorrelationCode)
	assert.Equal(t, "APPROVED", claims.TargetStatus)
	assert.Greater(t, claims.ExpiresAt, time.Now().Unix())
}

func TestVerify_TamperedPayloadFails(t *testing.T) {
	s := NewSigner("test-secret", time.Hour)

	approved, err := s.Issue(Claims{PaymentKind: KindSubscription, CorrelationCode: "corr-123", TargetStatus: "APPROVED"})
	require.NoError(t, err)
	canceled, err := s.Issue(Claims{PaymentKind: KindSubscription, CorrelationCode: "corr-123", TargetStatus: "CANCELED"})
	require.NoError(t, err)

	// splice the CANCELED payload onto the APPROVED signature
	a := strings.Split(approved, ".")
	c := strings.Split(canceled, ".")
	require.Len(t, a, 3)
	forged := a[0] + "." + c[1] + "." + a[2]

	_, err = s.Verify(forged)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrInvalidToken))
}

func TestVerify_WrongKeyFails(t *testing.T) {
	s := NewSigner("test-secret", time.Hour)
	raw, err := s.Issue(Claims{PaymentKind: KindSubscription, CorrelationCode: "corr-123"})
	require.NoError(t, err)

	other := NewSigner("other-secret", time.Hour)
	_, err = other.Verify(raw)
	assert.True(t, errors.Is(err, apperr.ErrInvalidToken))

	// per-call secret override wins over the default
	claims, err := other.Verify(raw, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, "corr-123", claims.CorrelationCode)
}

func TestVerify_ExpiredFails(t *testing.T) {
	s := NewSigner("test-secret", time.Hour)
	raw, err := s.Issue(Claims{
		PaymentKind:    KindSubscription,
		StandardClaims: jwt.StandardClaims{ExpiresAt: time.Now().Add(-time.Minute).Unix()},
	})
	require.NoError(t, err)

	_, err = s.Verify(raw)
	assert.True(t, errors.Is(err, apperr.ErrInvalidToken))
}

func TestDecode_SkipsSignatureCheck(t *testing.T) {
	s := NewSigner("test-secret", time.Hour)
	raw, err := NewSigner("someone-elses-secret", time.Hour).Issue(Claims{CorrelationCode: "corr-999"})
	require.NoError(t, err)

	claims, err := s.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "corr-999", claims.CorrelationCode)

	_, err = s.Decode("not-a-token")
	assert.True(t, errors.Is(err, apperr.ErrInvalidToken))
}
