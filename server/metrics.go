package server

import (
	"net"

	"github.com/glomail/glomail/wire"
	"github.com/go-kit/kit/metrics"
)

type metricsService struct {
	service       Service
	registrations metrics.Counter
	logins        metrics.Counter
	logouts       metrics.Counter
}

func NewMetricsService(s Service, registrations metrics.Counter, logins metrics.Counter, logouts metrics.Counter) Service {
	return &metricsService{
		service:       s,
		registrations: registrations,
		logins:        logins,
		logouts:       logouts,
	}
}

func (s *metricsService) Run(listener net.Listener) error {
	return s.service.Run(listener)
}

func (s *metricsService) Register(c *Connection, msg *wire.Message) bool {

	ok := s.service.Register(c, msg)

	if ok {
		s.registrations.Add(1)
	}

	return ok
}

func (s *metricsService) Login(c *Connection, msg *wire.Message) bool {

	ok := s.service.Login(c, msg)

	if ok {
		s.logins.Add(1)
	}

	return ok
}

func (s *metricsService) Logout(c *Connection, msg *wire.Message) bool {

	ok := s.service.Logout(c, msg)

	if ok {
		s.logouts.Add(1)
	}

	return ok
}

func (s *metricsService) Inbox(c *Connection, msg *wire.Message) bool {
	return s.service.Inbox(c, msg)
}

func (s *metricsService) ReadEmail(c *Connection, msg *wire.Message) bool {
	return s.service.ReadEmail(c, msg)
}

func (s *metricsService) SendEmail(c *Connection, msg *wire.Message) bool {
	return s.service.SendEmail(c, msg)
}

func (s *metricsService) Stats(c *Connection, msg *wire.Message) bool {
	return s.service.Stats(c, msg)
}
