package stripe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intopays/subpay/internal/app/service/payment"
)

func TestDecodeWebhookEvent(t *testing.T) {
	p := &Payment{}

	tests := []struct {
		name    string
		payload string
		want    payment.WebhookEvent
	}{
		{
			name:    "completed session carries both codes",
			payload: `{"type":"checkout.session.completed","data":{"object":{"id":"cs_123","subscription":"sub_456"}}}`,
			want:    payment.WebhookEvent{Kind: payment.EventSessionCompleted, SessionCode: "cs_123", SubscriptionCode: "sub_456"},
		},
		{
			name:    "subscription deleted",
			payload: `{"type":"customer.subscription.deleted","data":{"object":{"id":"sub_456"}}}`,
			want:    payment.WebhookEvent{Kind: payment.EventSubscriptionCancelled, SubscriptionCode: "sub_456"},
		},
		{
			name:    "expired session",
			payload: `{"type":"checkout.session.expired","data":{"object":{"id":"cs_123"}}}`,
			want:    payment.WebhookEvent{Kind: payment.EventCheckoutCancelled, SessionCode: "cs_123"},
		},
		{
			name:    "unknown event type is ignored, not an error",
			payload: `{"type":"invoice.paid","data":{"object":{"id":"in_789"}}}`,
			want:    payment.WebhookEvent{Kind: payment.EventIgnored},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := p.DecodeWebhookEvent([]byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.want, *event)
		})
	}
}

func TestDecodeWebhookEvent_MalformedPayload(t *testing.T) {
	p := &Payment{}
	_, err := p.DecodeWebhookEvent([]byte("{not json"))
	require.Error(t, err)
}
