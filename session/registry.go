// Package session owns the authoritative mapping between
// live connections and authenticated usernames. Every
// binding is created here and only here; the connection
// handling layer looks bindings up but never mutates them.
package session

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// Constants

// minPasswordLen is the strictly-greater-than bound the
// registration policy enforces on password length.
const minPasswordLen = 9

// Variables

// ErrInvalidUsername signals a username without any
// alphabetic character or with characters unsafe for
// the on-disk account layout.
var ErrInvalidUsername = errors.New("username must contain a letter and only letters, digits, '.', '-' or '_'")

// ErrWeakPassword signals a password of nine or
// fewer characters at registration time.
var ErrWeakPassword = errors.New("password must be longer than 9 characters")

// ErrAccountExists signals a registration attempt for a
// username an account already exists for.
var ErrAccountExists = errors.New("an account with this username already exists")

// ErrAlreadyBound signals that the username is currently
// bound to another live connection.
var ErrAlreadyBound = errors.New("username is already in use by another connection")

// ErrWrongCredentials signals an unknown username or a
// password whose digest does not match the stored one.
var ErrWrongCredentials = errors.New("unknown username or wrong password")

// usernamePattern admits usernames that are safe to use
// as directory names and contain at least one letter.
var usernamePattern = regexp.MustCompile(`^[0-9._-]*[a-zA-Z][a-zA-Z0-9._-]*$`)

// Interfaces

// Accounts defines the slice of the mailbox store the
// registry needs for credential persistence.
type Accounts interface {

	// HasAccount reports whether an account exists
	// for the supplied username.
	HasAccount(username string) bool

	// CreateAccount persists a new account with the
	// supplied password digest.
	CreateAccount(username string, passwordHash string) error

	// PasswordHash returns the digest persisted at
	// account creation time.
	PasswordHash(username string) (string, error)
}

// Service defines the operations of the session registry.
type Service interface {

	// Register validates the supplied credentials,
	// persists a new account, and binds the connection
	// identified by token to the new username.
	Register(token string, username string, password string) error

	// Login verifies the supplied credentials against
	// the persisted digest and binds the connection
	// identified by token to the username.
	Login(token string, username string, password string) error

	// Logout removes whatever binding exists for the
	// connection identified by token. Logging out an
	// anonymous connection is a no-op.
	Logout(token string)

	// UsernameFor resolves the acting identity of the
	// connection identified by token.
	UsernameFor(token string) (string, bool)
}

// Structs

type registry struct {
	lock     sync.Mutex
	accounts Accounts
	byUser   map[string]string
	byToken  map[string]string
}

// Functions

// NewRegistry returns a session registry persisting
// accounts through the supplied store.
func NewRegistry(accounts Accounts) Service {

	return &registry{
		accounts: accounts,
		byUser:   make(map[string]string),
		byToken:  make(map[string]string),
	}
}

// HashPassword derives the hex-encoded SHA3-224 digest
// under which a password is persisted. The raw password
// itself is never written anywhere.
func HashPassword(password string) string {

	digest := sha3.Sum224([]byte(password))

	return hex.EncodeToString(digest[:])
}

// Register validates credentials, persists the account,
// and binds the connection to the new username.
func (r *registry) Register(token string, username string, password string) error {

	if !usernamePattern.MatchString(username) {
		return ErrInvalidUsername
	}

	if len(password) <= minPasswordLen {
		return ErrWeakPassword
	}

	user := strings.ToLower(username)

	r.lock.Lock()
	defer r.lock.Unlock()

	if r.accounts.HasAccount(user) {
		return ErrAccountExists
	}

	if _, bound := r.byUser[user]; bound {
		return ErrAlreadyBound
	}

	if err := r.accounts.CreateAccount(user, HashPassword(password)); err != nil {
		return fmt.Errorf("failed to persist new account '%s': %v", user, err)
	}

	r.bind(token, user)

	return nil
}

// Login verifies the digest of the submitted password
// against the persisted hash, independent of which
// connection is asking, and binds the connection on
// success.
func (r *registry) Login(token string, username string, password string) error {

	user := strings.ToLower(username)

	r.lock.Lock()
	defer r.lock.Unlock()

	stored, err := r.accounts.PasswordHash(user)
	if err != nil {
		return ErrWrongCredentials
	}

	submitted := HashPassword(password)

	if subtle.ConstantTimeCompare([]byte(stored), []byte(submitted)) != 1 {
		return ErrWrongCredentials
	}

	if boundToken, bound := r.byUser[user]; bound && boundToken != token {
		return ErrAlreadyBound
	}

	r.bind(token, user)

	return nil
}

// Logout removes the binding of the connection
// identified by token, if any.
func (r *registry) Logout(token string) {

	r.lock.Lock()
	defer r.lock.Unlock()

	if user, bound := r.byToken[token]; bound {
		delete(r.byUser, user)
		delete(r.byToken, token)
	}
}

// UsernameFor resolves the acting identity of the
// connection identified by token.
func (r *registry) UsernameFor(token string) (string, bool) {

	r.lock.Lock()
	defer r.lock.Unlock()

	user, bound := r.byToken[token]

	return user, bound
}

// bind records the two-way association between token and
// username. A previous binding of the same connection is
// released first so that a connection is bound to at most
// one username at a time. Caller holds the lock.
func (r *registry) bind(token string, username string) {

	if prev, bound := r.byToken[token]; bound {
		delete(r.byUser, prev)
	}

	r.byUser[username] = token
	r.byToken[token] = username
}
