// Package notify delivers status-change alerts through a transactional
// outbox. Domain operations insert Notification rows inside their own
// transaction; the Dispatcher delivers them asynchronously through one or
// more adapters. Delivery is best-effort and never affects the domain
// transaction that produced the row.
package notify

import (
	"context"

	"github.com/itc-hub/sitecontrol/internal/models"
)

// Adapter is a delivery channel for outbox notifications.
type Adapter interface {
	// Name identifies the channel in logs.
	Name() string

	// Send delivers one notification. An error marks the attempt failed;
	// the dispatcher retries up to its attempt limit.
	Send(ctx context.Context, n *models.Notification) error
}
