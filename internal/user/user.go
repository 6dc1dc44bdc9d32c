// Package user implements account management. Only admins manage accounts;
// a user's role is fixed at creation.
package user

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/itc-hub/sitecontrol/internal/auth"
	"github.com/itc-hub/sitecontrol/internal/authz"
	"github.com/itc-hub/sitecontrol/internal/domain"
	"github.com/itc-hub/sitecontrol/internal/models"
	"github.com/itc-hub/sitecontrol/internal/syslog"
)

// CreateOpts holds the fields of a new account.
type CreateOpts struct {
	Email    string
	FullName string
	Phone    string
	Role     models.Role
	Password string
}

// UpdateOpts holds mutable account fields. Nil means unchanged; the role is
// deliberately absent.
type UpdateOpts struct {
	FullName *string
	Phone    *string
	Password *string
}

// ListFilters narrows account listings.
type ListFilters struct {
	Role       models.Role
	Query      string // matches email or full name
	ActiveOnly bool
	Limit      int
	Offset     int
}

// Create registers a new account with a hashed password.
func Create(conn *gorm.DB, actor *models.User, opts CreateOpts) (*models.User, error) {
	if err := authz.Authorize(authz.OpUserManage, actor, authz.Resource{}); err != nil {
		return nil, err
	}
	if opts.Email == "" {
		return nil, fmt.Errorf("user: email is required: %w", domain.ErrValidation)
	}
	if !opts.Role.Valid() {
		return nil, fmt.Errorf("user: unknown role %q: %w", opts.Role, domain.ErrValidation)
	}
	if len(opts.Password) < 8 {
		return nil, fmt.Errorf("user: password must be at least 8 characters: %w", domain.ErrValidation)
	}

	hash, err := auth.HashPassword(opts.Password)
	if err != nil {
		return nil, err
	}

	u := models.User{
		ID:           uuid.New().String(),
		Email:        opts.Email,
		FullName:     opts.FullName,
		Phone:        opts.Phone,
		Role:         opts.Role,
		PasswordHash: hash,
		IsActive:     true,
		DateJoined:   time.Now(),
	}
	if err := conn.Create(&u).Error; err != nil {
		return nil, fmt.Errorf("user: create %s: %w", opts.Email, err)
	}
	syslog.Info(conn, models.LogCategoryUser, "account %s (%s) created by %s", u.Email, u.Role, actor.Email)
	return &u, nil
}

// Get retrieves an account by ID. Non-admins may only read themselves.
func Get(conn *gorm.DB, actor *models.User, id string) (*models.User, error) {
	if actor.Role != models.RoleAdmin && actor.ID != id {
		return nil, fmt.Errorf("user: %w", domain.ErrForbidden)
	}
	var u models.User
	if err := conn.Where("id = ?", id).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user: %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("user: get %s: %w", id, err)
	}
	return &u, nil
}

// List returns accounts matching the filters, newest first.
func List(conn *gorm.DB, actor *models.User, filters ListFilters) ([]models.User, int64, error) {
	if err := authz.Authorize(authz.OpUserManage, actor, authz.Resource{}); err != nil {
		return nil, 0, err
	}

	q := conn.Model(&models.User{})
	if filters.Role != "" {
		q = q.Where("role = ?", filters.Role)
	}
	if filters.Query != "" {
		like := "%" + filters.Query + "%"
		q = q.Where("email LIKE ? OR full_name LIKE ?", like, like)
	}
	if filters.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("user: count: %w", err)
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}

	var rows []models.User
	if err := q.Order("created_at DESC").Limit(limit).Offset(filters.Offset).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("user: list: %w", err)
	}
	return rows, total, nil
}

// Update edits mutable profile fields. Users may edit themselves, admins
// anyone. The role never changes after creation.
func Update(conn *gorm.DB, actor *models.User, id string, opts UpdateOpts) (*models.User, error) {
	if actor.Role != models.RoleAdmin && actor.ID != id {
		return nil, fmt.Errorf("user: %w", domain.ErrForbidden)
	}
	var u models.User
	if err := conn.Where("id = ?", id).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user: %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("user: get %s: %w", id, err)
	}

	if opts.FullName != nil {
		u.FullName = *opts.FullName
	}
	if opts.Phone != nil {
		u.Phone = *opts.Phone
	}
	if opts.Password != nil {
		if len(*opts.Password) < 8 {
			return nil, fmt.Errorf("user: password must be at least 8 characters: %w", domain.ErrValidation)
		}
		hash, err := auth.HashPassword(*opts.Password)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}

	if err := conn.Save(&u).Error; err != nil {
		return nil, fmt.Errorf("user: save %s: %w", id, err)
	}
	return &u, nil
}

// SetActive activates or deactivates an account. Deactivation revokes the
// account's refresh tokens via the auth service.
func SetActive(conn *gorm.DB, actor *models.User, svc *auth.Service, id string, active bool) (*models.User, error) {
	if err := authz.Authorize(authz.OpUserManage, actor, authz.Resource{}); err != nil {
		return nil, err
	}
	if actor.ID == id && !active {
		return nil, fmt.Errorf("user: cannot deactivate own account: %w", domain.ErrValidation)
	}
	var u models.User
	if err := conn.Where("id = ?", id).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user: %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("user: get %s: %w", id, err)
	}

	u.IsActive = active
	if err := conn.Save(&u).Error; err != nil {
		return nil, fmt.Errorf("user: save %s: %w", id, err)
	}
	if !active && svc != nil {
		if err := svc.RevokeAll(u.ID); err != nil {
			return nil, err
		}
	}
	state := "activated"
	if !active {
		state = "deactivated"
	}
	syslog.Info(conn, models.LogCategoryUser, "account %s %s by %s", u.Email, state, actor.Email)
	return &u, nil
}
