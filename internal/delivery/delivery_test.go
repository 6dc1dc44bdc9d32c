package delivery

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	dbpkg "github.com/itc-hub/sitecontrol/internal/db"
	"github.com/itc-hub/sitecontrol/internal/domain"
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
	if err := dbpkg.AutoMigrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func seedUser(t *testing.T, conn *gorm.DB, role models.Role) *models.User {
	t.Helper()
	u := models.User{
		ID:         uuid.New().String(),
		Email:      fmt.Sprintf("%s-%s@example.com", role, uuid.New().String()[:8]),
		Role:       role,
		IsActive:   true,
		DateJoined: time.Now(),
	}
	if err := conn.Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return &u
}

func seedSite(t *testing.T, conn *gorm.DB, ssk, foreman *models.User) *models.ConstructionObject {
	t.Helper()
	obj := models.ConstructionObject{
		UUID:   uuid.New().String(),
		Name:   "Site " + uuid.New().String()[:8],
		Status: models.ObjectActive,
	}
	if ssk != nil {
		obj.SSKID = &ssk.ID
	}
	if foreman != nil {
		obj.ForemanID = &foreman.ID
	}
	if err := conn.Create(&obj).Error; err != nil {
		t.Fatalf("seed object: %v", err)
	}
	return &obj
}

func TestWorkflow_ScheduleReceiveAccept(t *testing.T) {
	conn := openTestDB(t)
	ssk := seedUser(t, conn, models.RoleSSK)
	foreman := seedUser(t, conn, models.RoleForeman)
	obj := seedSite(t, conn, ssk, foreman)

	planned := time.Now().Add(48 * time.Hour)
	del, err := Schedule(conn, ssk, ScheduleOpts{ObjectID: obj.ID, PlannedDate: &planned, Notes: "rebar"})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if del.Status != models.DeliveryScheduled {
		t.Fatalf("status = %s, want scheduled", del.Status)
	}

	del, err = Receive(conn, foreman, del.ID, ReceiveOpts{
		InvoicePDFURL: "https://media/inv.pdf",
		InvoiceData:   `[{"item":"rebar 12mm","qty":200}]`,
	})
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if del.Status != models.DeliveryReceived {
		t.Fatalf("status = %s, want received", del.Status)
	}

	var inv models.Invoice
	if err := conn.Where("delivery_id = ?", del.ID).First(&inv).Error; err != nil {
		t.Fatalf("invoice row: %v", err)
	}

	del, err = Decide(conn, ssk, del.ID, DecideOpts{Decision: DecisionAccept})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if del.Status != models.DeliveryAccepted {
		t.Fatalf("status = %s, want accepted", del.Status)
	}
}

func TestWorkflow_LabRoute(t *testing.T) {
	conn := openTestDB(t)
	ssk := seedUser(t, conn, models.RoleSSK)
	foreman := seedUser(t, conn, models.RoleForeman)
	obj := seedSite(t, conn, ssk, foreman)

	del, _ := Schedule(conn, ssk, ScheduleOpts{ObjectID: obj.ID})
	del, _ = Receive(conn, foreman, del.ID, ReceiveOpts{})

	// Lab routing without items is rejected.
	if _, err := Decide(conn, ssk, del.ID, DecideOpts{Decision: DecisionSendToLab}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}

	del, err := Decide(conn, ssk, del.ID, DecideOpts{
		Decision: DecisionSendToLab,
		LabItems: `[{"invoice_item_id":1,"sample_code":"S-77"}]`,
	})
	if err != nil {
		t.Fatalf("send to lab: %v", err)
	}
	if del.Status != models.DeliveryAwaitingLab {
		t.Fatalf("status = %s, want awaiting_lab", del.Status)
	}

	var order models.LabOrder
	if err := conn.Where("delivery_id = ?", del.ID).First(&order).Error; err != nil {
		t.Fatalf("lab order: %v", err)
	}
	if order.Status != models.LabOrderSent {
		t.Errorf("order status = %s, want sent", order.Status)
	}

	del, err = CompleteLab(conn, ssk, del.ID, false)
	if err != nil {
		t.Fatalf("lab result: %v", err)
	}
	if del.Status != models.DeliveryRejected {
		t.Fatalf("status = %s, want rejected", del.Status)
	}

	conn.Where("delivery_id = ?", del.ID).First(&order)
	if order.Status != models.LabOrderDone {
		t.Errorf("order status = %s, want done", order.Status)
	}
}

func TestReceive_OnlyScheduled(t *testing.T) {
	conn := openTestDB(t)
	ssk := seedUser(t, conn, models.RoleSSK)
	foreman := seedUser(t, conn, models.RoleForeman)
	obj := seedSite(t, conn, ssk, foreman)

	del, _ := Schedule(conn, ssk, ScheduleOpts{ObjectID: obj.ID})
	if _, err := Receive(conn, foreman, del.ID, ReceiveOpts{}); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if _, err := Receive(conn, foreman, del.ID, ReceiveOpts{}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("double receive: err = %v, want ErrConflict", err)
	}
}

func TestAuthz_RolesEnforced(t *testing.T) {
	conn := openTestDB(t)
	ssk := seedUser(t, conn, models.RoleSSK)
	foreman := seedUser(t, conn, models.RoleForeman)
	otherForeman := seedUser(t, conn, models.RoleForeman)
	obj := seedSite(t, conn, ssk, foreman)

	// Foreman cannot schedule.
	if _, err := Schedule(conn, foreman, ScheduleOpts{ObjectID: obj.ID}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("foreman schedule: err = %v, want ErrForbidden", err)
	}

	del, _ := Schedule(conn, ssk, ScheduleOpts{ObjectID: obj.ID})

	// Only the object's foreman receives.
	if _, err := Receive(conn, otherForeman, del.ID, ReceiveOpts{}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("other foreman receive: err = %v, want ErrForbidden", err)
	}
	// SSK cannot receive.
	if _, err := Receive(conn, ssk, del.ID, ReceiveOpts{}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("ssk receive: err = %v, want ErrForbidden", err)
	}
}

func TestList_Visibility(t *testing.T) {
	conn := openTestDB(t)
	ssk := seedUser(t, conn, models.RoleSSK)
	foreman := seedUser(t, conn, models.RoleForeman)
	otherForeman := seedUser(t, conn, models.RoleForeman)
	obj := seedSite(t, conn, ssk, foreman)

	if _, err := Schedule(conn, ssk, ScheduleOpts{ObjectID: obj.ID}); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	_, total, err := List(conn, foreman, ListFilters{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 {
		t.Errorf("holder foreman sees %d, want 1", total)
	}

	_, total, err = List(conn, otherForeman, ListFilters{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 0 {
		t.Errorf("other foreman sees %d, want 0", total)
	}
}
