package activation

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

func seedPendingObject(t *testing.T, conn *gorm.DB, ssk, iko *models.User) *models.ConstructionObject {
	t.Helper()
	obj := models.ConstructionObject{
		UUID:   uuid.New().String(),
		Name:   "Site " + uuid.New().String()[:8],
		Status: models.ObjectActivationPending,
	}
	if ssk != nil {
		obj.SSKID = &ssk.ID
	}
	if iko != nil {
		obj.IKOID = &iko.ID
	}
	if err := conn.Create(&obj).Error; err != nil {
		t.Fatalf("seed object: %v", err)
	}
	return &obj
}

func TestRequest_AutoAssignsIKO(t *testing.T) {
	conn := openTestDB(t)
	ssk := seedUser(t, conn, models.RoleSSK)
	iko := seedUser(t, conn, models.RoleIKO)
	obj := seedPendingObject(t, conn, ssk, nil)

	act, err := Request(conn, ssk, obj.ID, RequestOpts{SSKChecklist: `{"fencing":true}`})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if act.Status != models.ActivationRequested {
		t.Errorf("status = %s, want requested", act.Status)
	}

	var got models.ConstructionObject
	conn.First(&got, obj.ID)
	if got.IKOID == nil || *got.IKOID != iko.ID {
		t.Fatal("request must auto-assign the least-loaded iko")
	}

	var audit models.ObjectRoleAudit
	if err := conn.Where("object_id = ? AND field = ?", obj.ID, "iko").First(&audit).Error; err != nil {
		t.Fatalf("auto-assignment must write an audit row: %v", err)
	}

	var n models.Notification
	if err := conn.Where("user_id = ?", iko.ID).First(&n).Error; err != nil {
		t.Fatalf("iko must be notified of the request: %v", err)
	}
}

func TestRequest_ByNonHolderForbidden(t *testing.T) {
	conn := openTestDB(t)
	owner := seedUser(t, conn, models.RoleSSK)
	other := seedUser(t, conn, models.RoleSSK)
	obj := seedPendingObject(t, conn, owner, nil)

	if _, err := Request(conn, other, obj.ID, RequestOpts{}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestRequest_AnyNonTerminalStatus(t *testing.T) {
	conn := openTestDB(t)
	ssk := seedUser(t, conn, models.RoleSSK)
	iko := seedUser(t, conn, models.RoleIKO)

	// A request is not gated on the object's status: a suspended or already
	// active object can still have an attempt filed against it.
	for _, status := range []string{
		models.ObjectActivationPending,
		models.ObjectActive,
		models.ObjectSuspended,
	} {
		obj := seedPendingObject(t, conn, ssk, iko)
		conn.Model(obj).Update("status", status)

		act, err := Request(conn, ssk, obj.ID, RequestOpts{})
		if err != nil {
			t.Fatalf("status %s: request: %v", status, err)
		}
		if act.Status != models.ActivationRequested {
			t.Errorf("status %s: activation = %s, want requested", status, act.Status)
		}
	}
}

func TestIkoCheck_ApproveActivatesObject(t *testing.T) {
	conn := openTestDB(t)
	ssk := seedUser(t, conn, models.RoleSSK)
	iko := seedUser(t, conn, models.RoleIKO)
	obj := seedPendingObject(t, conn, ssk, iko)

	if _, err := Request(conn, ssk, obj.ID, RequestOpts{}); err != nil {
		t.Fatalf("request: %v", err)
	}

	act, err := IkoCheck(conn, iko, obj.ID, CheckOpts{HasViolations: false, IKOChecklist: `{}`})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if act.Status != models.ActivationApproved {
		t.Errorf("activation status = %s, want approved", act.Status)
	}
	if act.ApprovedAt == nil || act.IKOCheckedAt == nil {
		t.Error("approval timestamps not set")
	}

	var got models.ConstructionObject
	conn.First(&got, obj.ID)
	if got.Status != models.ObjectActive {
		t.Errorf("object status = %s, want active", got.Status)
	}
	if !got.CanProceed {
		t.Error("approved activation must open the work gate")
	}
}

func TestIkoCheck_ViolationsReject(t *testing.T) {
	conn := openTestDB(t)
	ssk := seedUser(t, conn, models.RoleSSK)
	iko := seedUser(t, conn, models.RoleIKO)
	obj := seedPendingObject(t, conn, ssk, iko)

	if _, err := Request(conn, ssk, obj.ID, RequestOpts{}); err != nil {
		t.Fatalf("request: %v", err)
	}

	act, err := IkoCheck(conn, iko, obj.ID, CheckOpts{
		HasViolations:  true,
		RejectedReason: "no perimeter fencing",
	})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if act.Status != models.ActivationChecked {
		t.Errorf("activation status = %s, want checked", act.Status)
	}
	if act.RejectedReason != "no perimeter fencing" {
		t.Errorf("rejected reason = %q", act.RejectedReason)
	}

	var got models.ConstructionObject
	conn.First(&got, obj.ID)
	if got.Status != models.ObjectActivationPending {
		t.Errorf("object status = %s, want still pending", got.Status)
	}
	if got.CanProceed {
		t.Error("rejected activation must not open the work gate")
	}
}

func TestIkoCheck_RepeatRequestAfterRejection(t *testing.T) {
	conn := openTestDB(t)
	ssk := seedUser(t, conn, models.RoleSSK)
	iko := seedUser(t, conn, models.RoleIKO)
	obj := seedPendingObject(t, conn, ssk, iko)

	if _, err := Request(conn, ssk, obj.ID, RequestOpts{}); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if _, err := IkoCheck(conn, iko, obj.ID, CheckOpts{HasViolations: true, RejectedReason: "debris"}); err != nil {
		t.Fatalf("reject: %v", err)
	}

	// New attempt gets its own row; history survives.
	later := time.Now().Add(time.Second)
	second, err := Request(conn, ssk, obj.ID, RequestOpts{})
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	conn.Model(second).Update("requested_at", later)

	act, err := IkoCheck(conn, iko, obj.ID, CheckOpts{HasViolations: false})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if act.ID != second.ID {
		t.Errorf("check applied to row %d, want latest %d", act.ID, second.ID)
	}

	var count int64
	conn.Model(&models.ObjectActivation{}).Where("object_id = ?", obj.ID).Count(&count)
	if count != 2 {
		t.Errorf("activation rows = %d, want 2", count)
	}
}

func TestIkoCheck_ByNonHolderForbidden(t *testing.T) {
	conn := openTestDB(t)
	ssk := seedUser(t, conn, models.RoleSSK)
	iko := seedUser(t, conn, models.RoleIKO)
	stranger := seedUser(t, conn, models.RoleIKO)
	obj := seedPendingObject(t, conn, ssk, iko)

	if _, err := Request(conn, ssk, obj.ID, RequestOpts{}); err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := IkoCheck(conn, stranger, obj.ID, CheckOpts{}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestIkoCheck_NoRequestNotFound(t *testing.T) {
	conn := openTestDB(t)
	ssk := seedUser(t, conn, models.RoleSSK)
	iko := seedUser(t, conn, models.RoleIKO)
	obj := seedPendingObject(t, conn, ssk, iko)

	if _, err := IkoCheck(conn, iko, obj.ID, CheckOpts{}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
