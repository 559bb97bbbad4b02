package store

import (
	"github.com/glomail/glomail/wire"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// Structs

type loggingService struct {
	logger  log.Logger
	service Service
}

// Functions

// NewLoggingService wraps a provided existing
// service with the provided logger.
func NewLoggingService(s Service, logger log.Logger) Service {

	return &loggingService{
		logger:  logger,
		service: s,
	}
}

// CreateAccount wraps this service's CreateAccount
// method with added logging capabilities.
func (s *loggingService) CreateAccount(username string, passwordHash string) error {

	err := s.service.CreateAccount(username, passwordHash)

	logger := log.With(s.logger,
		"method", "CreateAccount",
		"username", username,
	)

	if err != nil {
		level.Warn(logger).Log("err", err)
	} else {
		level.Debug(logger).Log()
	}

	return err
}

// HasAccount wraps this service's HasAccount
// method with added logging capabilities.
func (s *loggingService) HasAccount(username string) bool {
	return s.service.HasAccount(username)
}

// PasswordHash wraps this service's PasswordHash
// method with added logging capabilities.
func (s *loggingService) PasswordHash(username string) (string, error) {
	return s.service.PasswordHash(username)
}

// AppendEmail wraps this service's AppendEmail
// method with added logging capabilities.
func (s *loggingService) AppendEmail(username string, email *wire.EmailContentPayload) error {

	err := s.service.AppendEmail(username, email)

	logger := log.With(s.logger,
		"method", "AppendEmail",
		"username", username,
		"sender", email.Sender,
	)

	if err != nil {
		level.Warn(logger).Log("err", err)
	} else {
		level.Debug(logger).Log()
	}

	return err
}

// ListEmails wraps this service's ListEmails
// method with added logging capabilities.
func (s *loggingService) ListEmails(username string) ([]Summary, error) {

	summaries, err := s.service.ListEmails(username)

	if err != nil {
		level.Warn(s.logger).Log(
			"method", "ListEmails",
			"username", username,
			"err", err,
		)
	}

	return summaries, err
}

// GetEmail wraps this service's GetEmail
// method with added logging capabilities.
func (s *loggingService) GetEmail(username string, index int) (*wire.EmailContentPayload, error) {

	email, err := s.service.GetEmail(username, index)

	if err != nil {
		level.Debug(s.logger).Log(
			"method", "GetEmail",
			"username", username,
			"index", index,
			"err", err,
		)
	}

	return email, err
}

// Stats wraps this service's Stats method
// with added logging capabilities.
func (s *loggingService) Stats(username string) (*wire.StatsPayload, error) {

	stats, err := s.service.Stats(username)

	if err != nil {
		level.Warn(s.logger).Log(
			"method", "Stats",
			"username", username,
			"err", err,
		)
	}

	return stats, err
}

// ArchiveLost wraps this service's ArchiveLost
// method with added logging capabilities.
func (s *loggingService) ArchiveLost(email *wire.EmailContentPayload) error {

	err := s.service.ArchiveLost(email)

	logger := log.With(s.logger,
		"method", "ArchiveLost",
		"sender", email.Sender,
		"destination", email.Destination,
	)

	if err != nil {
		level.Warn(logger).Log("err", err)
	} else {
		level.Info(logger).Log("msg", "archived undeliverable email")
	}

	return err
}
