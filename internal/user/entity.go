// AngelaMos | 2026
// entity.go

package user

import (
	"time"

	"github.com/carterperez-dev/leadboard/internal/policy"
)

type User struct {
	ID           string    `db:"id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	Mobile       string    `db:"mobile"`
	PasswordHash string    `db:"password_hash"`
	Role         string    `db:"role"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (u *User) IsMasterAdmin() bool {
	return u.Role == policy.RoleMasterAdmin
}
