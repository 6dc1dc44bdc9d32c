package notify

import (
	"context"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/itc-hub/sitecontrol/internal/models"
)

const (
	// defaultPollInterval is how often the dispatcher checks for pending rows.
	defaultPollInterval = 5 * time.Second
	// defaultBatchSize caps the rows delivered per cycle.
	defaultBatchSize = 50
)

// Dispatcher drains the notification outbox through the configured adapters.
type Dispatcher struct {
	conn         *gorm.DB
	adapters     []Adapter
	pollInterval time.Duration
	batchSize    int
	maxAttempts  int
	sweepCron    string
}

// DispatcherOpts holds parameters for creating a Dispatcher.
type DispatcherOpts struct {
	Adapters     []Adapter
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	SweepCron    string // 5-field cron controlling the failed-row retry sweep
}

// NewDispatcher creates a Dispatcher over the given adapters.
func NewDispatcher(conn *gorm.DB, opts DispatcherOpts) *Dispatcher {
	d := &Dispatcher{
		conn:         conn,
		adapters:     opts.Adapters,
		pollInterval: opts.PollInterval,
		batchSize:    opts.BatchSize,
		maxAttempts:  opts.MaxAttempts,
		sweepCron:    opts.SweepCron,
	}
	if d.pollInterval <= 0 {
		d.pollInterval = defaultPollInterval
	}
	if d.batchSize <= 0 {
		d.batchSize = defaultBatchSize
	}
	if d.maxAttempts <= 0 {
		d.maxAttempts = 5
	}
	return d
}

// Run polls the outbox until ctx is cancelled. A parallel timer driven by
// the sweep cron expression re-queues failed rows for another round.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	sweep := time.NewTimer(nextCronDuration(d.sweepCron, d.pollInterval))
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Dispatch(ctx)
		case <-sweep.C:
			if n, err := RetryFailed(d.conn, d.maxAttempts); err != nil {
				log.Printf("notify: sweep: %v", err)
			} else if n > 0 {
				log.Printf("notify: sweep re-queued %d failed notifications", n)
			}
			sweep.Reset(nextCronDuration(d.sweepCron, d.pollInterval))
		}
	}
}

// Dispatch delivers one batch of pending notifications. Errors are logged,
// recorded on the row, and never returned; the primary workflow must not
// observe delivery failures.
func (d *Dispatcher) Dispatch(ctx context.Context) {
	rows, err := Pending(d.conn, d.batchSize)
	if err != nil {
		log.Printf("notify: %v", err)
		return
	}

	for i := range rows {
		d.deliver(ctx, &rows[i])
	}
}

// deliver fans the row out to every adapter. Outcome is tracked per row, not
// per adapter: a partial failure marks the whole row failed, and the retry
// sweep re-sends through all adapters, so a channel that already delivered
// may alert again.
func (d *Dispatcher) deliver(ctx context.Context, n *models.Notification) {
	var lastErr error
	if len(d.adapters) == 0 {
		lastErr = errors.New("no delivery channels configured")
	}
	for _, a := range d.adapters {
		if err := a.Send(ctx, n); err != nil {
			log.Printf("notify: %s: send notification %d: %v", a.Name(), n.ID, err)
			lastErr = err
		}
	}

	updates := map[string]interface{}{
		"attempts": n.Attempts + 1,
	}
	if lastErr != nil {
		updates["status"] = models.NotificationFailed
		updates["last_error"] = truncate(lastErr.Error(), 500)
	} else {
		now := time.Now()
		updates["status"] = models.NotificationSent
		updates["sent_at"] = now
		updates["last_error"] = ""
	}

	if err := d.conn.Model(&models.Notification{}).Where("id = ?", n.ID).Updates(updates).Error; err != nil {
		log.Printf("notify: mark notification %d: %v", n.ID, err)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
