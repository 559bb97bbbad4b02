package server

import (
	"net"

	"github.com/glomail/glomail/wire"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

type loggingService struct {
	logger  log.Logger
	service Service
}

// NewLoggingService wraps a provided existing
// service with the provided logger.
func NewLoggingService(s Service, logger log.Logger) Service {
	return &loggingService{logger, s}
}

// Run wraps this service's Run method with
// added logging capabilities.
func (s *loggingService) Run(listener net.Listener) error {

	err := s.service.Run(listener)

	if err != nil {
		level.Warn(s.logger).Log(
			"msg", "failed to run server service",
			"err", err,
		)
	}

	return err
}

// Register wraps this service's Register method
// with added logging capabilities.
func (s *loggingService) Register(c *Connection, msg *wire.Message) bool {

	ok := s.service.Register(c, msg)

	logger := log.With(s.logger,
		"method", "AUTH_REGISTER",
		"client", c.ClientAddr,
	)

	if !ok {
		level.Info(logger).Log("msg", "failed to answer operation AUTH_REGISTER correctly")
	} else {
		level.Debug(logger).Log()
	}

	return ok
}

// Login wraps this service's Login method
// with added logging capabilities.
func (s *loggingService) Login(c *Connection, msg *wire.Message) bool {

	ok := s.service.Login(c, msg)

	logger := log.With(s.logger,
		"method", "AUTH_LOGIN",
		"client", c.ClientAddr,
	)

	if !ok {
		level.Info(logger).Log("msg", "failed to answer operation AUTH_LOGIN correctly")
	} else {
		level.Debug(logger).Log()
	}

	return ok
}

// Logout wraps this service's Logout method
// with added logging capabilities.
func (s *loggingService) Logout(c *Connection, msg *wire.Message) bool {

	ok := s.service.Logout(c, msg)

	logger := log.With(s.logger,
		"method", "AUTH_LOGOUT",
		"client", c.ClientAddr,
	)

	if !ok {
		level.Info(logger).Log("msg", "failed to answer operation AUTH_LOGOUT correctly")
	} else {
		level.Debug(logger).Log()
	}

	return ok
}

// Inbox wraps this service's Inbox method
// with added logging capabilities.
func (s *loggingService) Inbox(c *Connection, msg *wire.Message) bool {

	ok := s.service.Inbox(c, msg)

	logger := log.With(s.logger,
		"method", "INBOX_READING_REQUEST",
		"client", c.ClientAddr,
	)

	if !ok {
		level.Info(logger).Log("msg", "failed to answer operation INBOX_READING_REQUEST correctly")
	} else {
		level.Debug(logger).Log()
	}

	return ok
}

// ReadEmail wraps this service's ReadEmail method
// with added logging capabilities.
func (s *loggingService) ReadEmail(c *Connection, msg *wire.Message) bool {

	ok := s.service.ReadEmail(c, msg)

	logger := log.With(s.logger,
		"method", "INBOX_READING_CHOICE",
		"client", c.ClientAddr,
	)

	if !ok {
		level.Info(logger).Log("msg", "failed to answer operation INBOX_READING_CHOICE correctly")
	} else {
		level.Debug(logger).Log()
	}

	return ok
}

// SendEmail wraps this service's SendEmail method
// with added logging capabilities.
func (s *loggingService) SendEmail(c *Connection, msg *wire.Message) bool {

	ok := s.service.SendEmail(c, msg)

	logger := log.With(s.logger,
		"method", "EMAIL_SENDING",
		"client", c.ClientAddr,
	)

	if !ok {
		level.Info(logger).Log("msg", "failed to answer operation EMAIL_SENDING correctly")
	} else {
		level.Debug(logger).Log()
	}

	return ok
}

// Stats wraps this service's Stats method
// with added logging capabilities.
func (s *loggingService) Stats(c *Connection, msg *wire.Message) bool {

	ok := s.service.Stats(c, msg)

	logger := log.With(s.logger,
		"method", "STATS_REQUEST",
		"client", c.ClientAddr,
	)

	if !ok {
		level.Info(logger).Log("msg", "failed to answer operation STATS_REQUEST correctly")
	} else {
		level.Debug(logger).Log()
	}

	return ok
}
