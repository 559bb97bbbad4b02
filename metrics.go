package main

import (
	"net/http"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type GlomailMetrics struct {
	Server *ServerMetrics
	Router *RouterMetrics
}

type ServerMetrics struct {
	Registrations metrics.Counter
	Logins        metrics.Counter
	Logouts       metrics.Counter
}

type RouterMetrics struct {
	DeliveredLocal metrics.Counter
	Relayed        metrics.Counter
	Lost           metrics.Counter
}

func NewGlomailMetrics(prometheusAddr string) *GlomailMetrics {

	m := &GlomailMetrics{}

	if prometheusAddr == "" {
		m.Server = &ServerMetrics{
			Registrations: discard.NewCounter(),
			Logins:        discard.NewCounter(),
			Logouts:       discard.NewCounter(),
		}
		m.Router = &RouterMetrics{
			DeliveredLocal: discard.NewCounter(),
			Relayed:        discard.NewCounter(),
			Lost:           discard.NewCounter(),
		}
	} else {
		m.Server = &ServerMetrics{
			Registrations: prometheus.NewCounterFrom(prom.CounterOpts{
				Namespace: "glomail",
				Subsystem: "server",
				Name:      "registrations_total",
				Help:      "Number of successfully answered registrations",
			}, nil),
			Logins: prometheus.NewCounterFrom(prom.CounterOpts{
				Namespace: "glomail",
				Subsystem: "server",
				Name:      "logins_total",
				Help:      "Number of logins",
			}, nil),
			Logouts: prometheus.NewCounterFrom(prom.CounterOpts{
				Namespace: "glomail",
				Subsystem: "server",
				Name:      "logouts_total",
				Help:      "Number of logouts",
			}, nil),
		}
		m.Router = &RouterMetrics{
			DeliveredLocal: prometheus.NewCounterFrom(prom.CounterOpts{
				Namespace: "glomail",
				Subsystem: "router",
				Name:      "delivered_local_total",
				Help:      "Number of emails delivered into local mailboxes",
			}, nil),
			Relayed: prometheus.NewCounterFrom(prom.CounterOpts{
				Namespace: "glomail",
				Subsystem: "router",
				Name:      "relayed_total",
				Help:      "Number of emails accepted by the external SMTP relay",
			}, nil),
			Lost: prometheus.NewCounterFrom(prom.CounterOpts{
				Namespace: "glomail",
				Subsystem: "router",
				Name:      "lost_total",
				Help:      "Number of unroutable emails archived to the lost mail area",
			}, nil),
		}
	}

	return m
}

func runPromHTTP(logger log.Logger, addr string) {

	if addr == "" {
		level.Debug(logger).Log("msg", "prometheus addr is empty, not exposing prometheus metrics")
		return
	}

	http.Handle("/metrics", promhttp.HandlerFor(prom.DefaultGatherer, promhttp.HandlerOpts{}))

	level.Info(logger).Log("msg", "prometheus handler listening", "addr", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		level.Warn(logger).Log("msg", "failed to serve prometheus metrics", "err", err)
	}
}
