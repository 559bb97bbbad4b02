package router

import (
	"context"

	"github.com/glomail/glomail/wire"
	"github.com/go-kit/kit/metrics"
)

type metricsService struct {
	service        Service
	deliveredLocal metrics.Counter
	relayed        metrics.Counter
	lost           metrics.Counter
}

func NewMetricsService(s Service, deliveredLocal metrics.Counter, relayed metrics.Counter, lost metrics.Counter) Service {
	return &metricsService{
		service:        s,
		deliveredLocal: deliveredLocal,
		relayed:        relayed,
		lost:           lost,
	}
}

func (s *metricsService) Route(ctx context.Context, email *wire.EmailContentPayload) (Disposition, error) {

	disposition, err := s.service.Route(ctx, email)

	if err == nil || disposition == ArchivedLost {

		switch disposition {
		case DeliveredLocal:
			s.deliveredLocal.Add(1)
		case Relayed:
			s.relayed.Add(1)
		case ArchivedLost:
			s.lost.Add(1)
		}
	}

	return disposition, err
}
