package session

import (
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

// Register wraps this service's Register method
// with added logging capabilities.
func (s *loggingService) Register(token string, username string, password string) error {

	err := s.service.Register(token, username, password)

	logger := log.With(s.logger,
		"method", "Register",
		"username", username,
	)

	if err != nil {
		level.Info(logger).Log("err", err)
	} else {
		level.Debug(logger).Log()
	}

	return err
}

// Login wraps this service's Login method
// with added logging capabilities.
func (s *loggingService) Login(token string, username string, password string) error {

	err := s.service.Login(token, username, password)

	logger := log.With(s.logger,
		"method", "Login",
		"username", username,
	)

	if err != nil {
		level.Info(logger).Log("err", err)
	} else {
		level.Debug(logger).Log()
	}

	return err
}

// Logout wraps this service's Logout method
// with added logging capabilities.
func (s *loggingService) Logout(token string) {

	s.service.Logout(token)

	level.Debug(s.logger).Log("method", "Logout")
}

// UsernameFor wraps this service's UsernameFor
// method with added logging capabilities.
func (s *loggingService) UsernameFor(token string) (string, bool) {
	return s.service.UsernameFor(token)
}
