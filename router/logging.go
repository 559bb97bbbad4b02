package router

import (
	"context"

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

// Route wraps this service's Route method
// with added logging capabilities.
func (s *loggingService) Route(ctx context.Context, email *wire.EmailContentPayload) (Disposition, error) {

	disposition, err := s.service.Route(ctx, email)

	logger := log.With(s.logger,
		"method", "Route",
		"sender", email.Sender,
		"destination", email.Destination,
		"disposition", dispositionName(disposition),
	)

	if err != nil {
		level.Info(logger).Log("err", err)
	} else {
		level.Debug(logger).Log()
	}

	return disposition, err
}

// dispositionName maps a disposition to its log label.
func dispositionName(d Disposition) string {

	switch d {
	case DeliveredLocal:
		return "local"
	case Relayed:
		return "relayed"
	case ArchivedLost:
		return "lost"
	default:
		return "unknown"
	}
}
