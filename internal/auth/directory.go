package auth

import (
	"strings"

	"golang.org/x/crypto/bcrypt"

	"smartattendance/internal/model"
)

// Account is a seed entry for the identity store.
type Account struct {
	ID       string
	Username string
	Password string
	Role     model.Role
}

// DefaultAccounts are the fixed logins shipped with the service.
var DefaultAccounts = []Account{
	{ID: "lecturer1", Username: "lecturer@uni.edu", Password: "password123", Role: model.RoleLecturer},
	{ID: "prefect1", Username: "prefect@uni.edu", Password: "password123", Role: model.RoleClassPrefect},
}

type credential struct {
	user model.User
	hash []byte
}

// Directory is the fixed credential set. It is immutable after construction.
type Directory struct {
	byUsername map[string]credential
	byID       map[string]model.User
}

// NewDirectory hashes the seed passwords and indexes the accounts.
func NewDirectory(accounts []Account) (*Directory, error) {
	d := &Directory{
		byUsername: make(map[string]credential, len(accounts)),
		byID:       make(map[string]model.User, len(accounts)),
	}
	for _, acc := range accounts {
		hash, err := bcrypt.GenerateFromPassword([]byte(acc.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		usr := model.User{ID: acc.ID, Username: acc.Username, Role: acc.Role}
		d.byUsername[normalize(acc.Username)] = credential{user: usr, hash: hash}
		d.byID[acc.ID] = usr
	}
	return d, nil
}

// Authenticate returns the matching user without its password.
func (d *Directory) Authenticate(username, password string) (model.User, error) {
	cred, ok := d.byUsername[normalize(username)]
	if !ok {
		return model.User{}, model.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(cred.hash, []byte(password)); err != nil {
		return model.User{}, model.ErrInvalidCredentials
	}
	return cred.user, nil
}

// Lookup returns the seeded user with the given id.
func (d *Directory) Lookup(id string) (model.User, bool) {
	usr, ok := d.byID[id]
	return usr, ok
}

func normalize(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
