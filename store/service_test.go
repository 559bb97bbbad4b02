package store_test

import (
	"errors"
	"os"
	"testing"

	"path/filepath"

	"github.com/glomail/glomail/store"
	"github.com/glomail/glomail/wire"
)

// Functions

// newTestStore returns a store service rooted in a
// temporary directory together with its roots.
func newTestStore(t *testing.T) (store.Service, string, string) {

	t.Helper()

	base := t.TempDir()
	dataRoot := filepath.Join(base, "data")
	lostRoot := filepath.Join(base, "lost+found")

	s, err := store.NewService(dataRoot, lostRoot)
	if err != nil {
		t.Fatalf("Expected store initialization not to fail but: %v", err)
	}

	return s, dataRoot, lostRoot
}

// testEmail builds one email addressed to the supplied
// recipient with the supplied subject.
func testEmail(to string, subject string) *wire.EmailContentPayload {

	return &wire.EmailContentPayload{
		Sender:      "bob@glo2000.ca",
		Destination: to,
		Subject:     subject,
		Date:        "Mon, 06 May 2024 14:00:00 UTC",
		Content:     "lorem ipsum\n",
	}
}

// TestCreateAccountIdempotent checks that retrying the
// creation of an account never overwrites the digest
// persisted the first time.
func TestCreateAccountIdempotent(t *testing.T) {

	s, _, _ := newTestStore(t)

	if err := s.CreateAccount("alice", "digest-one"); err != nil {
		t.Fatalf("Expected first account creation not to fail but: %v", err)
	}

	if !s.HasAccount("alice") {
		t.Fatalf("Expected account to exist after creation")
	}

	if err := s.CreateAccount("alice", "digest-two"); err != nil {
		t.Fatalf("Expected retried account creation not to fail but: %v", err)
	}

	hash, err := s.PasswordHash("alice")
	if err != nil {
		t.Fatalf("Expected reading password digest not to fail but: %v", err)
	}

	if hash != "digest-one" {
		t.Fatalf("Expected original digest to survive retry but got: '%s'", hash)
	}
}

// TestCaseInsensitiveAccounts checks that account lookups
// do not depend on username casing.
func TestCaseInsensitiveAccounts(t *testing.T) {

	s, _, _ := newTestStore(t)

	if err := s.CreateAccount("Alice", "digest"); err != nil {
		t.Fatalf("Expected account creation not to fail but: %v", err)
	}

	if !s.HasAccount("ALICE") || !s.HasAccount("alice") {
		t.Fatalf("Expected account lookups to be case-insensitive")
	}
}

// TestEmptyMailbox checks that a brand-new account reads
// as an empty mailbox, not as an error.
func TestEmptyMailbox(t *testing.T) {

	s, _, _ := newTestStore(t)

	if err := s.CreateAccount("alice", "digest"); err != nil {
		t.Fatalf("Expected account creation not to fail but: %v", err)
	}

	summaries, err := s.ListEmails("alice")
	if err != nil {
		t.Fatalf("Expected listing an empty mailbox not to fail but: %v", err)
	}

	if len(summaries) != 0 {
		t.Fatalf("Expected empty mailbox but got %d summaries", len(summaries))
	}

	stats, err := s.Stats("alice")
	if err != nil {
		t.Fatalf("Expected stats of an empty mailbox not to fail but: %v", err)
	}

	if stats.Count != 0 || stats.Size != 0 {
		t.Fatalf("Expected stats (0, 0) but got (%d, %d)", stats.Count, stats.Size)
	}
}

// TestAppendGetRoundTrip checks that a delivered email is
// reproduced verbatim at the resulting display index.
func TestAppendGetRoundTrip(t *testing.T) {

	s, _, _ := newTestStore(t)

	if err := s.CreateAccount("alice", "digest"); err != nil {
		t.Fatalf("Expected account creation not to fail but: %v", err)
	}

	original := testEmail("alice", "hi")

	if err := s.AppendEmail("alice", original); err != nil {
		t.Fatalf("Expected appending email not to fail but: %v", err)
	}

	summaries, err := s.ListEmails("alice")
	if err != nil {
		t.Fatalf("Expected listing mailbox not to fail but: %v", err)
	}

	if len(summaries) != 1 || summaries[0].Index != 1 {
		t.Fatalf("Expected one summary carrying index 1 but got: %+v", summaries)
	}

	stored, err := s.GetEmail("alice", 1)
	if err != nil {
		t.Fatalf("Expected reading email at index 1 not to fail but: %v", err)
	}

	if *stored != *original {
		t.Fatalf("Expected stored email to match original but got: %+v", stored)
	}
}

// TestOrderingNewestFirst checks that display order is
// newest first and independent of any user-supplied field.
func TestOrderingNewestFirst(t *testing.T) {

	s, _, _ := newTestStore(t)

	if err := s.CreateAccount("alice", "digest"); err != nil {
		t.Fatalf("Expected account creation not to fail but: %v", err)
	}

	for _, subject := range []string{"first", "second", "third"} {
		if err := s.AppendEmail("alice", testEmail("alice", subject)); err != nil {
			t.Fatalf("Expected appending email '%s' not to fail but: %v", subject, err)
		}
	}

	summaries, err := s.ListEmails("alice")
	if err != nil {
		t.Fatalf("Expected listing mailbox not to fail but: %v", err)
	}

	if len(summaries) != 3 {
		t.Fatalf("Expected three summaries but got %d", len(summaries))
	}

	expected := []string{"third", "second", "first"}
	for i, summary := range summaries {

		if summary.Subject != expected[i] {
			t.Fatalf("Expected subject '%s' at position %d but got '%s'", expected[i], i, summary.Subject)
		}

		if summary.Index != i+1 {
			t.Fatalf("Expected display index %d but got %d", i+1, summary.Index)
		}
	}
}

// TestDuplicateSubjects checks that two emails sharing a
// subject never collide in storage.
func TestDuplicateSubjects(t *testing.T) {

	s, _, _ := newTestStore(t)

	if err := s.CreateAccount("alice", "digest"); err != nil {
		t.Fatalf("Expected account creation not to fail but: %v", err)
	}

	if err := s.AppendEmail("alice", testEmail("alice", "hi")); err != nil {
		t.Fatalf("Expected appending first email not to fail but: %v", err)
	}

	if err := s.AppendEmail("alice", testEmail("alice", "hi")); err != nil {
		t.Fatalf("Expected appending second email not to fail but: %v", err)
	}

	stats, err := s.Stats("alice")
	if err != nil {
		t.Fatalf("Expected stats not to fail but: %v", err)
	}

	if stats.Count != 2 {
		t.Fatalf("Expected both emails to be stored but counted %d", stats.Count)
	}
}

// TestGetEmailOutOfRange checks the typed failure for
// display indices outside the mailbox.
func TestGetEmailOutOfRange(t *testing.T) {

	s, _, _ := newTestStore(t)

	if err := s.CreateAccount("alice", "digest"); err != nil {
		t.Fatalf("Expected account creation not to fail but: %v", err)
	}

	if err := s.AppendEmail("alice", testEmail("alice", "hi")); err != nil {
		t.Fatalf("Expected appending email not to fail but: %v", err)
	}

	for _, index := range []int{0, -3, 2, 99} {
		if _, err := s.GetEmail("alice", index); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("Expected ErrNotFound for index %d but got: %v", index, err)
		}
	}
}

// TestStatsSize checks that the reported total size is
// the sum of the on-disk email file sizes.
func TestStatsSize(t *testing.T) {

	s, dataRoot, _ := newTestStore(t)

	if err := s.CreateAccount("alice", "digest"); err != nil {
		t.Fatalf("Expected account creation not to fail but: %v", err)
	}

	if err := s.AppendEmail("alice", testEmail("alice", "hi")); err != nil {
		t.Fatalf("Expected appending email not to fail but: %v", err)
	}

	mailDir := filepath.Join(dataRoot, "alice", "email")

	entries, err := os.ReadDir(mailDir)
	if err != nil {
		t.Fatalf("Expected reading mail directory not to fail but: %v", err)
	}

	var onDisk int64
	for _, entry := range entries {

		info, err := entry.Info()
		if err != nil {
			t.Fatalf("Expected reading file info not to fail but: %v", err)
		}

		onDisk += info.Size()
	}

	stats, err := s.Stats("alice")
	if err != nil {
		t.Fatalf("Expected stats not to fail but: %v", err)
	}

	if stats.Count != 1 || stats.Size != onDisk {
		t.Fatalf("Expected stats (1, %d) but got (%d, %d)", onDisk, stats.Count, stats.Size)
	}
}

// TestArchiveLost checks that undeliverable emails are
// preserved in the lost mail area.
func TestArchiveLost(t *testing.T) {

	s, _, lostRoot := newTestStore(t)

	if err := s.ArchiveLost(testEmail("nosuchuser", "hi")); err != nil {
		t.Fatalf("Expected archiving lost email not to fail but: %v", err)
	}

	entries, err := os.ReadDir(lostRoot)
	if err != nil {
		t.Fatalf("Expected reading lost mail area not to fail but: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("Expected one archived email but found %d entries", len(entries))
	}
}
