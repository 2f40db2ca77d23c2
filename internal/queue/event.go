// Package queue carries account audit events over RabbitMQ: a publisher
// fed by the credential lifecycle and a consumer that appends each event to
// a log file.
package queue

import (
	"fmt"
	"strings"

	"github.com/iliyamo/authgate/internal/model"
)

// formatEvent renders one audit line.  Fields that are unset are left out.
func formatEvent(ev model.AccountEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", ev.OccurredAt, ev.Kind)
	if ev.AccountID != 0 {
		fmt.Fprintf(&b, " | account_id=%d", ev.AccountID)
	}
	if ev.Email != "" {
		fmt.Fprintf(&b, " | email=%q", ev.Email)
	}
	if ev.TokenID != "" {
		fmt.Fprintf(&b, " | token_id=%s", ev.TokenID)
	}
	if ev.RemoteIP != "" {
		fmt.Fprintf(&b, " | ip=%s", ev.RemoteIP)
	}
	b.WriteByte('\n')
	return b.String()
}
