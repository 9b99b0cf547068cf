package types

// SubscriptionStatus tracks checkout-level progress of a subscription.
// PROCESSING is the only non-terminal state: it may move to APPROVED or
// CANCELED, and APPROVED may still move to CANCELED, but nothing ever moves
// back to PROCESSING.
type SubscriptionStatus string

const (
	SubscriptionStatusProcessing SubscriptionStatus = "PROCESSING"
	SubscriptionStatusApproved   SubscriptionStatus = "APPROVED"
	SubscriptionStatusCanceled   SubscriptionStatus = "CANCELED"
)

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionStatusProcessing, SubscriptionStatusApproved, SubscriptionStatusCanceled:
		return true
	}
	return false
}

// Terminal reports whether the status admits no forward transition besides
// APPROVED→CANCELED.
func (s SubscriptionStatus) Terminal() bool {
	return s == SubscriptionStatusApproved || s == SubscriptionStatusCanceled
}

// ChargeStatus is independent bookkeeping for provider-side billing
// continuity. It only ever advances; see ChargeStatus.Rank.
type ChargeStatus string

const (
	ChargeStatusStopped            ChargeStatus = "STOPPED"
	ChargeStatusRunning            ChargeStatus = "RUNNING"
	ChargeStatusWaitingCancelation ChargeStatus = "WAITING_CANCELATION"
	ChargeStatusCanceled           ChargeStatus = "CANCELED"
)

// Rank orders charge statuses so writers can enforce forward-only movement.
// The redirect path advances STOPPED→RUNNING and webhooks advance
// anything→CANCELED; a lower-ranked write against a higher-ranked record is a
// stale replay and must be dropped.
func (s ChargeStatus) Rank() int {
	switch s {
	case ChargeStatusStopped:
		return 0
	case ChargeStatusRunning:
		return 1
	case ChargeStatusWaitingCancelation:
		return 2
	case ChargeStatusCanceled:
		return 3
	}
	return -1
}
