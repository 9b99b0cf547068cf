package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"

	"github.com/intopays/subpay/pkg/apperr"
)

// PaymentKind discriminates which checkout flow a state token belongs to.
type PaymentKind string

const (
	KindSubscription PaymentKind = "SUBSCRIPTION"
	KindCheckout     PaymentKind = "CHECKOUT"
	KindPayment      PaymentKind = "PAYMENT"
)

// Claims is the payload carried by a signed state token. Redirect-path tokens
// carry CorrelationCode+TargetStatus; checkout-render tokens carry
// SubscriptionID+PublicKey; login tokens carry AccountID+Email.
type Claims struct {
	PaymentKind     PaymentKind `json:"payment_kind,omitempty"`
	CorrelationCode string      `json:"correlation_code,omitempty"`
	TargetStatus    string      `json:"target_status,omitempty"`
	SubscriptionID  string      `json:"subscription_id,omitempty"`
	PublicKey       string      `json:"public_key,omitempty"`
	AccountID       string      `json:"account_id,omitempty"`
	Email           string      `json:"email,omitempty"`
	jwt.StandardClaims
}

// Signer issues and verifies state tokens with a process-wide default secret.
// An explicit secret may be passed per call for account-scoped login tokens.
type Signer struct {
	secret []byte
	ttl    time.Duration
}

func NewSigner(secret string, ttl time.Duration) *Signer {
	return &Signer{secret: []byte(secret), ttl: ttl}
}

func (s *Signer) key(override ...string) []byte {
	if len(override) > 0 && override[0] != "" {
		return []byte(override[0])
	}
	return s.secret
}

// Issue signs the claims with HS256. A zero signer TTL means no expiry.
func (s *Signer) Issue(claims Claims, secret ...string) (string, error) {
	if s.ttl > 0 && claims.ExpiresAt == 0 {
		claims.ExpiresAt = time.Now().Add(s.ttl).Unix()
	}
	if claims.IssuedAt == 0 {
		claims.IssuedAt = time.Now().Unix()
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims).SignedString(s.key(secret...))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Decode parses the claims without validating the signature. It must never be
// used to authorize a state change; callers that mutate anything go through
// Verify.
func (s *Signer) Decode(raw string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.Parser{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("malformed token: %w", apperr.ErrInvalidToken)
	}
	return claims, nil
}

// Verify validates signature and expiry and returns the claims. Any failure
// (tampered payload, wrong key, expired, malformed) yields ErrInvalidToken.
func (s *Signer) Verify(raw string, secret ...string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.key(secret...), nil
	})
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("token verification failed: %w", apperr.ErrInvalidToken)
	}
	return claims, nil
}
