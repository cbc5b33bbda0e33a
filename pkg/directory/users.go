package directory

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/getmockd/mockidp/internal/id"
	"github.com/getmockd/mockidp/pkg/logging"
)

// bcryptCost is the work factor for new password hashes. Tests lower it.
var bcryptCost = bcrypt.DefaultCost

// User is a directory user.
type User struct {
	ID                string `json:"id"`
	UserPrincipalName string `json:"userPrincipalName"`
	DisplayName       string `json:"displayName"`
	GivenName         string `json:"givenName,omitempty"`
	Surname           string `json:"surname,omitempty"`
	Mail              string `json:"mail,omitempty"`
	JobTitle          string `json:"jobTitle,omitempty"`
	Department        string `json:"department,omitempty"`
	PasswordHash      string `json:"passwordHash"`
}

// Email returns the mail address, falling back to the principal name.
func (u *User) Email() string {
	if u.Mail != "" {
		return u.Mail
	}
	return u.UserPrincipalName
}

// NewUser is the input to Users.Add. Password is plain text and hashed on
// add. An empty ID is replaced by a UUID.
type NewUser struct {
	ID                string
	UserPrincipalName string
	DisplayName       string
	GivenName         string
	Surname           string
	Mail              string
	JobTitle          string
	Department        string
	Password          string
}

// Users is the user registry. Principal-name lookups are case-insensitive.
type Users struct {
	mu     sync.RWMutex
	path   string
	users  []User
	byID   map[string]int
	byUPN  map[string]int
	logger *slog.Logger
}

// OpenUsers loads the users file at path. When the file does not exist the
// default users are seeded and written to path.
func OpenUsers(path string, logger *slog.Logger) (*Users, error) {
	logger = logging.Component(logger, "directory")

	var users []User
	err := loadJSON(path, usersSchema, &users)
	switch {
	case err == nil:
		logger.Info("loaded users", "path", path, "count", len(users))
	case errors.Is(err, fs.ErrNotExist):
		users, err = DefaultUsers()
		if err != nil {
			return nil, err
		}
		if err := writeJSONAtomic(path, users); err != nil {
			return nil, err
		}
		logger.Info("seeded default users", "path", path, "count", len(users))
	default:
		return nil, err
	}

	u, err := newUsers(users, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	u.path = path
	return u, nil
}

// NewUsers builds an in-memory registry. Add does not persist.
func NewUsers(users []User, logger *slog.Logger) (*Users, error) {
	return newUsers(users, logging.Component(logger, "directory"))
}

func newUsers(users []User, logger *slog.Logger) (*Users, error) {
	u := &Users{
		byID:   make(map[string]int, len(users)),
		byUPN:  make(map[string]int, len(users)),
		logger: logger,
	}
	for _, user := range users {
		if err := u.insert(user); err != nil {
			return nil, err
		}
	}
	return u, nil
}

func (u *Users) insert(user User) error {
	upn := strings.ToLower(user.UserPrincipalName)
	if _, ok := u.byID[user.ID]; ok {
		return fmt.Errorf("%w: user id %q", ErrDuplicate, user.ID)
	}
	if _, ok := u.byUPN[upn]; ok {
		return fmt.Errorf("%w: user %q", ErrDuplicate, user.UserPrincipalName)
	}
	u.users = append(u.users, user)
	u.byID[user.ID] = len(u.users) - 1
	u.byUPN[upn] = len(u.users) - 1
	return nil
}

// FindByPrincipalName returns a copy of the user with the given UPN.
func (u *Users) FindByPrincipalName(name string) (*User, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	i, ok := u.byUPN[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	user := u.users[i]
	return &user, true
}

// FindByID returns a copy of the user with the given id.
func (u *Users) FindByID(id string) (*User, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	i, ok := u.byID[id]
	if !ok {
		return nil, false
	}
	user := u.users[i]
	return &user, true
}

// VerifyCredentials returns the user when password matches the stored
// bcrypt hash.
func (u *Users) VerifyCredentials(name, password string) (*User, bool) {
	user, ok := u.FindByPrincipalName(name)
	if !ok {
		return nil, false
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, false
	}
	return user, true
}

// List returns a copy of all users in insertion order.
func (u *Users) List() []User {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]User, len(u.users))
	copy(out, u.users)
	return out
}

// Add hashes the password, stores the user and rewrites the file.
func (u *Users) Add(in NewUser) (*User, error) {
	if in.UserPrincipalName == "" {
		return nil, errors.New("userPrincipalName is required")
	}
	if in.Password == "" {
		return nil, errors.New("password is required")
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := User{
		ID:                in.ID,
		UserPrincipalName: in.UserPrincipalName,
		DisplayName:       in.DisplayName,
		GivenName:         in.GivenName,
		Surname:           in.Surname,
		Mail:              in.Mail,
		JobTitle:          in.JobTitle,
		Department:        in.Department,
		PasswordHash:      hash,
	}
	if user.ID == "" {
		user.ID = id.UUID()
	}
	if user.DisplayName == "" {
		user.DisplayName = user.UserPrincipalName
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if err := u.insert(user); err != nil {
		return nil, err
	}
	if u.path != "" {
		if err := writeJSONAtomic(u.path, u.users); err != nil {
			u.rollback(user)
			return nil, err
		}
	}
	u.logger.Info("added user", "upn", user.UserPrincipalName, "id", user.ID)
	return &user, nil
}

// rollback drops the last inserted user. Callers hold the write lock.
func (u *Users) rollback(user User) {
	u.users = u.users[:len(u.users)-1]
	delete(u.byID, user.ID)
	delete(u.byUPN, strings.ToLower(user.UserPrincipalName))
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
