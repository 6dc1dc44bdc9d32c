package models

import "time"

// Role is the closed set of user roles used for authorization.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleSSK     Role = "ssk"     // site-control service
	RoleIKO     Role = "iko"     // independent inspector
	RoleForeman Role = "foreman" // on-site execution
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSSK, RoleIKO, RoleForeman:
		return true
	}
	return false
}

// User is an authenticated identity. The role is immutable after creation
// and is the sole authorization key for domain operations.
type User struct {
	ID           string `gorm:"primaryKey;size:36"`
	Email        string `gorm:"uniqueIndex;size:254;not null"`
	FullName     string `gorm:"size:200"`
	Phone        string `gorm:"size:32"`
	Role         Role   `gorm:"size:16;default:foreman;index"`
	PasswordHash string `gorm:"size:128"`
	IsActive     bool   `gorm:"default:true"`
	DateJoined   time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RefreshToken is a persisted refresh token, revocable by ID on logout.
type RefreshToken struct {
	ID        string `gorm:"primaryKey;size:36"`
	UserID    string `gorm:"size:36;index:idx_refresh_user"`
	JTI       string `gorm:"size:36;index"`
	TokenHash string `gorm:"size:64"`
	UserAgent string `gorm:"size:256"`
	IP        string `gorm:"size:45"`
	ExpiresAt time.Time
	Revoked   bool `gorm:"default:false;index:idx_refresh_user"`
	CreatedAt time.Time

	User User `gorm:"foreignKey:UserID"`
}
