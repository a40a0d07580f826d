package domain

import "context"

// Notification is a best-effort message pushed to a guest outside the reply.
// Credential is whatever the delivery backend needs to reach the recipient
// (an access token for a messaging API, empty for chat channels).
type Notification struct {
	Recipient  string `json:"recipient"`
	Text       string `json:"text"`
	Credential string `json:"-"`
}

// Notifier delivers notifications. Errors are reported to the caller for
// logging only; they never affect dialogue state.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, n Notification) error
}
