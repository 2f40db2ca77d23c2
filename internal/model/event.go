package model

// Account event kinds published to the audit queue.
const (
	EventRegistered = "account.registered"
	EventLoggedIn   = "account.logged_in"
	EventLoggedOut  = "account.logged_out"
	EventDeleted    = "account.deleted"
	EventLoginFail  = "account.login_failed"
)

// AccountEvent is published after a credential lifecycle step.  It carries
// no secrets: neither the token nor any password material.
type AccountEvent struct {
	Kind       string `json:"kind"`
	AccountID  uint64 `json:"account_id,omitempty"`
	Email      string `json:"email,omitempty"`
	TokenID    string `json:"token_id,omitempty"`
	RemoteIP   string `json:"remote_ip,omitempty"`
	OccurredAt string `json:"occurred_at"`
}
