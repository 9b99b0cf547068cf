package tool

import "github.com/google/uuid"

func GenerateUUIDV7() string {
	return uuid.Must(uuid.NewV7()).String()
}

// GenerateCorrelationCode returns the opaque code embedded in signed state
// tokens and used to resolve subscriptions on the redirect path.
func GenerateCorrelationCode() string {
	return uuid.NewString()
}
