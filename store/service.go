package store

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"encoding/json"
	"path/filepath"
	"sync/atomic"

	"github.com/glomail/glomail/wire"
)

// Constants

// createMode holds the permissions used when creating
// account and mailbox directories.
const createMode = 0700

// fileMode holds the permissions used when writing
// password hashes and stored emails.
const fileMode = 0600

// passwordFileName is the file inside each account
// directory holding that account's password digest.
const passwordFileName = "passwd"

// mailDirName is the subdirectory inside each account
// directory holding one file per received email.
const mailDirName = "email"

// Variables

// ErrNotFound signals a display index that does not
// resolve to a stored email.
var ErrNotFound = errors.New("no email stored at supplied index")

// ErrUnknownAccount signals an operation against a
// username no account was ever created for.
var ErrUnknownAccount = errors.New("no account exists for supplied username")

// keyCounter distinguishes emails stored during the
// same wall-clock nanosecond.
var keyCounter int64 = 10000

// Structs

// Summary carries the envelope values of one stored
// email together with its 1-based display index.
type Summary struct {
	Index   int
	Sender  string
	Subject string
	Date    string
}

// Interfaces

// Service defines the operations the file-backed
// mailbox store provides.
type Service interface {

	// CreateAccount creates the storage area for a new
	// account and persists its password digest exactly
	// once. Retrying an existing account is a no-op and
	// never overwrites the stored digest.
	CreateAccount(username string, passwordHash string) error

	// HasAccount reports whether an account storage
	// area exists for the supplied username.
	HasAccount(username string) bool

	// PasswordHash returns the digest persisted at
	// account creation time.
	PasswordHash(username string) (string, error)

	// AppendEmail stores one new email under the
	// recipient's mail area, creating that area
	// lazily on first delivery.
	AppendEmail(username string, email *wire.EmailContentPayload) error

	// ListEmails returns summaries of all stored emails
	// of an account, newest first, carrying 1-based
	// display indices. An account without a mail area
	// yields an empty list, never an error.
	ListEmails(username string) ([]Summary, error)

	// GetEmail resolves a display index against the
	// same newest-first order ListEmails uses and
	// returns the complete stored email.
	GetEmail(username string, index int) (*wire.EmailContentPayload, error)

	// Stats returns the number of stored emails of an
	// account and their total size on disk in bytes.
	Stats(username string) (*wire.StatsPayload, error)

	// ArchiveLost preserves an undeliverable email in
	// the dedicated lost mail area for later inspection.
	ArchiveLost(email *wire.EmailContentPayload) error
}

type service struct {
	lock     sync.Mutex
	dataRoot string
	lostRoot string
}

// Functions

// NewService prepares the data and lost mail roots on
// disk and returns a store service working on top of them.
func NewService(dataRoot string, lostRoot string) (Service, error) {

	if err := os.MkdirAll(dataRoot, createMode); err != nil {
		return nil, fmt.Errorf("failed to create data root '%s': %v", dataRoot, err)
	}

	if err := os.MkdirAll(lostRoot, createMode); err != nil {
		return nil, fmt.Errorf("failed to create lost mail root '%s': %v", lostRoot, err)
	}

	return &service{
		dataRoot: dataRoot,
		lostRoot: lostRoot,
	}, nil
}

// normalize maps a username to its canonical form so
// that lookups are case-insensitive.
func normalize(username string) string {
	return strings.ToLower(username)
}

// nextKey generates a unique storage key for a new email
// from the creation time and a monotonic counter. The key
// doubles as the persisted ordering: keys of later mails
// compare greater.
func nextKey(now time.Time) string {
	return fmt.Sprintf("%019d.%d", now.UnixNano(), atomic.AddInt64(&keyCounter, 1))
}

// accountDir returns the directory holding all data
// of one account.
func (s *service) accountDir(username string) string {
	return filepath.Join(s.dataRoot, normalize(username))
}

// mailDir returns the directory holding the stored
// emails of one account.
func (s *service) mailDir(username string) string {
	return filepath.Join(s.accountDir(username), mailDirName)
}

// CreateAccount creates the account's storage area and
// writes the password digest once.
func (s *service) CreateAccount(username string, passwordHash string) error {

	s.lock.Lock()
	defer s.lock.Unlock()

	dir := s.accountDir(username)

	if err := os.MkdirAll(dir, createMode); err != nil {
		return fmt.Errorf("failed to create account directory for '%s': %v", username, err)
	}

	passwordFile := filepath.Join(dir, passwordFileName)

	// An already present digest stays untouched.
	if _, err := os.Stat(passwordFile); err == nil {
		return nil
	}

	if err := os.WriteFile(passwordFile, []byte(passwordHash), fileMode); err != nil {
		return fmt.Errorf("failed to write password digest for '%s': %v", username, err)
	}

	return nil
}

// HasAccount reports whether a password digest was ever
// persisted for the supplied username.
func (s *service) HasAccount(username string) bool {

	_, err := os.Stat(filepath.Join(s.accountDir(username), passwordFileName))

	return err == nil
}

// PasswordHash returns the digest persisted at account
// creation time.
func (s *service) PasswordHash(username string) (string, error) {

	raw, err := os.ReadFile(filepath.Join(s.accountDir(username), passwordFileName))
	if err != nil {

		if os.IsNotExist(err) {
			return "", ErrUnknownAccount
		}

		return "", fmt.Errorf("failed to read password digest for '%s': %v", username, err)
	}

	return strings.TrimSpace(string(raw)), nil
}

// AppendEmail stores one new email under the recipient's
// mail area.
func (s *service) AppendEmail(username string, email *wire.EmailContentPayload) error {

	s.lock.Lock()
	defer s.lock.Unlock()

	dir := s.mailDir(username)

	// The mail area comes into existence on
	// first delivered message.
	if err := os.MkdirAll(dir, createMode); err != nil {
		return fmt.Errorf("failed to create mail directory for '%s': %v", username, err)
	}

	raw, err := json.Marshal(email)
	if err != nil {
		return fmt.Errorf("failed to marshal email for '%s': %v", username, err)
	}

	name := filepath.Join(dir, nextKey(time.Now().UTC()))

	if err := os.WriteFile(name, raw, fileMode); err != nil {
		return fmt.Errorf("failed to write email file for '%s': %v", username, err)
	}

	return nil
}

// mailKeys returns the storage keys of all emails of an
// account ordered newest first. A missing mail area is
// equivalent to an empty mailbox.
func (s *service) mailKeys(username string) ([]string, error) {

	entries, err := os.ReadDir(s.mailDir(username))
	if err != nil {

		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list mail directory for '%s': %v", username, err)
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {

		if entry.IsDir() {
			continue
		}

		keys = append(keys, entry.Name())
	}

	// Keys embed creation time and a monotonic counter,
	// so sorting them descending yields newest first
	// independent of directory listing order.
	sort.Sort(sort.Reverse(byKey(keys)))

	return keys, nil
}

// byKey orders storage keys by their embedded creation
// time and counter.
type byKey []string

func (k byKey) Len() int      { return len(k) }
func (k byKey) Swap(i, j int) { k[i], k[j] = k[j], k[i] }

func (k byKey) Less(i, j int) bool {

	iNanos, iSeq := splitKey(k[i])
	jNanos, jSeq := splitKey(k[j])

	if iNanos != jNanos {
		return iNanos < jNanos
	}

	return iSeq < jSeq
}

// splitKey parses the two numeric components out of a
// storage key. Malformed names sort before all valid keys.
func splitKey(key string) (int64, int64) {

	parts := strings.SplitN(key, ".", 2)
	if len(parts) != 2 {
		return -1, -1
	}

	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return -1, -1
	}

	seq, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return -1, -1
	}

	return nanos, seq
}

// readEmail loads one stored email of an account by
// its storage key.
func (s *service) readEmail(username string, key string) (*wire.EmailContentPayload, error) {

	raw, err := os.ReadFile(filepath.Join(s.mailDir(username), key))
	if err != nil {
		return nil, fmt.Errorf("failed to read email file '%s' of '%s': %v", key, username, err)
	}

	email := new(wire.EmailContentPayload)
	if err := json.Unmarshal(raw, email); err != nil {
		return nil, fmt.Errorf("failed to unmarshal email file '%s' of '%s': %v", key, username, err)
	}

	return email, nil
}

// ListEmails returns summaries of all stored emails of
// an account, newest first.
func (s *service) ListEmails(username string) ([]Summary, error) {

	s.lock.Lock()
	defer s.lock.Unlock()

	keys, err := s.mailKeys(username)
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(keys))
	for i, key := range keys {

		email, err := s.readEmail(username, key)
		if err != nil {
			return nil, err
		}

		summaries = append(summaries, Summary{
			Index:   i + 1,
			Sender:  email.Sender,
			Subject: email.Subject,
			Date:    email.Date,
		})
	}

	return summaries, nil
}

// GetEmail returns the complete stored email at the
// supplied 1-based display index.
func (s *service) GetEmail(username string, index int) (*wire.EmailContentPayload, error) {

	s.lock.Lock()
	defer s.lock.Unlock()

	keys, err := s.mailKeys(username)
	if err != nil {
		return nil, err
	}

	if index < 1 || index > len(keys) {
		return nil, ErrNotFound
	}

	return s.readEmail(username, keys[index-1])
}

// Stats returns the number of stored emails of an account
// and their total on-disk size in bytes.
func (s *service) Stats(username string) (*wire.StatsPayload, error) {

	s.lock.Lock()
	defer s.lock.Unlock()

	keys, err := s.mailKeys(username)
	if err != nil {
		return nil, err
	}

	stats := &wire.StatsPayload{Count: len(keys)}

	for _, key := range keys {

		info, err := os.Stat(filepath.Join(s.mailDir(username), key))
		if err != nil {
			return nil, fmt.Errorf("failed to stat email file '%s' of '%s': %v", key, username, err)
		}

		stats.Size += info.Size()
	}

	return stats, nil
}

// ArchiveLost preserves an undeliverable email in the
// lost mail area.
func (s *service) ArchiveLost(email *wire.EmailContentPayload) error {

	s.lock.Lock()
	defer s.lock.Unlock()

	raw, err := json.Marshal(email)
	if err != nil {
		return fmt.Errorf("failed to marshal lost email: %v", err)
	}

	name := filepath.Join(s.lostRoot, nextKey(time.Now().UTC()))

	if err := os.WriteFile(name, raw, fileMode); err != nil {
		return fmt.Errorf("failed to write lost email file: %v", err)
	}

	return nil
}
