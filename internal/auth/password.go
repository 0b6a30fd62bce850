package auth

import (
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// ErrNoSuchUser is returned when the username is unknown and ErrBadPassword
// when the password doesn't match; Authenticate reports the two cases
// separately.
var (
	ErrNoSuchUser  = errors.New("auth: no such user")
	ErrBadPassword = errors.New("auth: incorrect password")
)

// HashPassword bcrypt-hashes password at the library default cost, the same
// call cfgapi.HashUserPassword makes in the teacher's appliance-side user
// provisioning path.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// ComparePassword reports whether password matches hash.
func ComparePassword(hash []byte, password string) error {
	return bcrypt.CompareHashAndPassword(hash, []byte(password))
}
