package object

import (
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/itc-hub/sitecontrol/internal/domain"
	"github.com/itc-hub/sitecontrol/internal/models"
)

// Candidate is one pickable role holder with their current load.
type Candidate struct {
	User            models.User
	AssignedObjects int64
}

// LessLoaded is the auto-assignment comparator: fewest currently assigned
// objects wins, earliest registration breaks ties.
func LessLoaded(a, b Candidate) bool {
	if a.AssignedObjects != b.AssignedObjects {
		return a.AssignedObjects < b.AssignedObjects
	}
	return a.User.DateJoined.Before(b.User.DateJoined)
}

// CountAssignedObjects counts the objects on which the user currently holds
// the given role field.
func CountAssignedObjects(conn *gorm.DB, role models.Role, userID string) (int64, error) {
	var column string
	switch role {
	case models.RoleSSK:
		column = "ssk_id"
	case models.RoleIKO:
		column = "iko_id"
	case models.RoleForeman:
		column = "foreman_id"
	default:
		return 0, fmt.Errorf("object: role %s holds no objects: %w", role, domain.ErrValidation)
	}

	var n int64
	err := conn.Model(&models.ConstructionObject{}).
		Where(column+" = ?", userID).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("object: count %s assignments for %s: %w", role, userID, err)
	}
	return n, nil
}

// PickLeastLoaded returns the active user of the given role with the fewest
// assigned objects.
func PickLeastLoaded(conn *gorm.DB, role models.Role) (*models.User, error) {
	return pickLeastLoaded(conn, role)
}

func pickLeastLoaded(tx *gorm.DB, role models.Role) (*models.User, error) {
	var users []models.User
	err := tx.Where("role = ? AND is_active = ?", role, true).
		Order("date_joined ASC").Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("object: load %s users: %w", role, err)
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("object: no available %s: %w", role, domain.ErrValidation)
	}

	candidates := make([]Candidate, 0, len(users))
	for _, u := range users {
		n, err := CountAssignedObjects(tx, role, u.ID)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, Candidate{User: u, AssignedObjects: n})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return LessLoaded(candidates[i], candidates[j])
	})
	return &candidates[0].User, nil
}
