package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/itc-hub/sitecontrol/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := conn.AutoMigrate(&models.Notification{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

// fakeAdapter records sends and can be told to fail.
type fakeAdapter struct {
	sent []uint
	fail bool
}

func (f *fakeAdapter) Name() string { return "fake" }

func (f *fakeAdapter) Send(ctx context.Context, n *models.Notification) error {
	if f.fail {
		return errors.New("channel down")
	}
	f.sent = append(f.sent, n.ID)
	return nil
}

func TestEnqueueAndPending(t *testing.T) {
	conn := openTestDB(t)
	objID := uint(7)

	if err := Enqueue(conn, &objID, "u-1", "u1@example.com", "Subject", "Body"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := EnqueueForUser(conn, nil, nil, "x", "y"); err != nil {
		t.Fatalf("nil user must be a no-op: %v", err)
	}

	rows, err := Pending(conn, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("pending rows = %d, want 1", len(rows))
	}
	if rows[0].Status != models.NotificationPending || rows[0].Email != "u1@example.com" {
		t.Errorf("unexpected row: %+v", rows[0])
	}
}

func TestDispatch_MarksSent(t *testing.T) {
	conn := openTestDB(t)
	if err := Enqueue(conn, nil, "u-1", "u1@example.com", "S", "M"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	fake := &fakeAdapter{}
	d := NewDispatcher(conn, DispatcherOpts{Adapters: []Adapter{fake}})
	d.Dispatch(context.Background())

	if len(fake.sent) != 1 {
		t.Fatalf("adapter sends = %d, want 1", len(fake.sent))
	}
	var n models.Notification
	conn.First(&n)
	if n.Status != models.NotificationSent || n.SentAt == nil || n.Attempts != 1 {
		t.Errorf("row after dispatch: status=%s attempts=%d sent_at=%v", n.Status, n.Attempts, n.SentAt)
	}
}

func TestDispatch_FailureRecorded(t *testing.T) {
	conn := openTestDB(t)
	if err := Enqueue(conn, nil, "u-1", "u1@example.com", "S", "M"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	d := NewDispatcher(conn, DispatcherOpts{Adapters: []Adapter{&fakeAdapter{fail: true}}})
	d.Dispatch(context.Background())

	var n models.Notification
	conn.First(&n)
	if n.Status != models.NotificationFailed {
		t.Fatalf("status = %s, want failed", n.Status)
	}
	if n.LastError == "" || n.Attempts != 1 {
		t.Errorf("last_error=%q attempts=%d", n.LastError, n.Attempts)
	}
}

func TestRetryFailed_RespectsMaxAttempts(t *testing.T) {
	conn := openTestDB(t)
	seed := func(attempts int) {
		conn.Create(&models.Notification{
			UserID: "u-1", Email: "u1@example.com",
			Status: models.NotificationFailed, Attempts: attempts,
		})
	}
	seed(1)
	seed(5)

	n, err := RetryFailed(conn, 5)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if n != 1 {
		t.Fatalf("re-queued = %d, want 1", n)
	}

	var pending, failed int64
	conn.Model(&models.Notification{}).Where("status = ?", models.NotificationPending).Count(&pending)
	conn.Model(&models.Notification{}).Where("status = ?", models.NotificationFailed).Count(&failed)
	if pending != 1 || failed != 1 {
		t.Errorf("pending=%d failed=%d, want 1/1", pending, failed)
	}
}

func TestDispatch_RetryCycleEventuallySends(t *testing.T) {
	conn := openTestDB(t)
	if err := Enqueue(conn, nil, "u-1", "u1@example.com", "S", "M"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	fake := &fakeAdapter{fail: true}
	d := NewDispatcher(conn, DispatcherOpts{Adapters: []Adapter{fake}, MaxAttempts: 5})

	d.Dispatch(context.Background())
	if _, err := RetryFailed(conn, 5); err != nil {
		t.Fatalf("retry: %v", err)
	}

	fake.fail = false
	d.Dispatch(context.Background())

	var n models.Notification
	conn.First(&n)
	if n.Status != models.NotificationSent {
		t.Fatalf("status = %s, want sent", n.Status)
	}
	if n.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", n.Attempts)
	}
	if n.LastError != "" {
		t.Errorf("last_error = %q, want cleared", n.LastError)
	}
}

func TestDispatch_PartialFailureResendsAllAdapters(t *testing.T) {
	conn := openTestDB(t)
	if err := Enqueue(conn, nil, "u-1", "u1@example.com", "S", "M"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	healthy := &fakeAdapter{}
	broken := &fakeAdapter{fail: true}
	d := NewDispatcher(conn, DispatcherOpts{Adapters: []Adapter{healthy, broken}, MaxAttempts: 5})

	d.Dispatch(context.Background())

	var n models.Notification
	conn.First(&n)
	if n.Status != models.NotificationFailed {
		t.Fatalf("status = %s, want failed (one adapter down)", n.Status)
	}
	if len(healthy.sent) != 1 {
		t.Fatalf("healthy adapter sends = %d, want 1", len(healthy.sent))
	}

	// The retry fans out to every adapter again; the channel that already
	// delivered gets a duplicate.
	if _, err := RetryFailed(conn, 5); err != nil {
		t.Fatalf("retry: %v", err)
	}
	broken.fail = false
	d.Dispatch(context.Background())

	conn.First(&n)
	if n.Status != models.NotificationSent {
		t.Fatalf("status = %s, want sent", n.Status)
	}
	if len(healthy.sent) != 2 {
		t.Errorf("healthy adapter sends = %d, want 2", len(healthy.sent))
	}
	if len(broken.sent) != 1 {
		t.Errorf("recovered adapter sends = %d, want 1", len(broken.sent))
	}
}

func TestDispatch_NoAdaptersMarksFailed(t *testing.T) {
	conn := openTestDB(t)
	if err := Enqueue(conn, nil, "u-1", "u1@example.com", "S", "M"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	d := NewDispatcher(conn, DispatcherOpts{})
	d.Dispatch(context.Background())

	var n models.Notification
	conn.First(&n)
	if n.Status != models.NotificationFailed {
		t.Fatalf("status = %s, want failed", n.Status)
	}
}

func TestNextCronDuration(t *testing.T) {
	if d := nextCronDuration("*/5 * * * *", time.Second); d <= 0 || d > 5*time.Minute {
		t.Errorf("every-five-minutes: d = %v", d)
	}
	if d := nextCronDuration("not a cron", 42*time.Second); d != 42*time.Second {
		t.Errorf("invalid expr: d = %v, want fallback", d)
	}
}
