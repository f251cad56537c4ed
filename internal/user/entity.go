// AngelaMos | 2026
// entity.go

package user

import (
	"time"

	"github.com/carterperez-dev/marketplace-access/internal/access"
)

type User struct {
	ID           string     `db:"id"`
	Email        string     `db:"email"`
	PasswordHash string     `db:"password_hash"`
	Name         string     `db:"name"`
	Role         string     `db:"role"`
	Tier         string     `db:"tier"`
	TokenVersion int        `db:"token_version"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
	DeletedAt    *time.Time `db:"deleted_at"`
}

func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}

func (u *User) IsAdmin() bool {
	return u.AccessRole() == access.RoleAdmin
}

// AccessRole is the stored role, or "" when the column holds something the
// resolver does not know.
func (u *User) AccessRole() access.Role {
	r, _ := access.ParseRole(u.Role)
	return r
}

// AccessTier is the stored tier, normalized.
func (u *User) AccessTier() access.Tier {
	return access.NormalizeTier(u.Tier)
}

// SignupCount is one row of the per-role signup aggregation.
type SignupCount struct {
	Role  string `db:"role"`
	Count int    `db:"count"`
}

// TierWrite is the result of a tier update: the stored value it replaced.
type TierWrite struct {
	PreviousTier string    `db:"previous_tier"`
	UpdatedAt    time.Time `db:"updated_at"`
}
