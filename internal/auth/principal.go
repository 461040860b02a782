// Package auth holds credential hashing, token issuance and the principal
// types that authenticated requests carry.
package auth

// Role is the token claim that separates members from operators.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Principal is either a User or an Admin. The two id spaces never mix.
type Principal interface {
	Role() Role
	Subject() uint64
	Mail() string
	principal()
}

// User is an authenticated member.
type User struct {
	UserID uint64
	Email  string
}

func (User) Role() Role        { return RoleUser }
func (u User) Subject() uint64 { return u.UserID }
func (u User) Mail() string    { return u.Email }
func (User) principal()        {}

// Admin is an authenticated operator.
type Admin struct {
	AdminID uint64
	Email   string
}

func (Admin) Role() Role        { return RoleAdmin }
func (a Admin) Subject() uint64 { return a.AdminID }
func (a Admin) Mail() string    { return a.Email }
func (Admin) principal()        {}
