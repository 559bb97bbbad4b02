package main

import (
	"flag"
	"net"
	"os"
	"strings"
	"time"

	"github.com/glomail/glomail/config"
	"github.com/glomail/glomail/relay"
	"github.com/glomail/glomail/router"
	"github.com/glomail/glomail/server"
	"github.com/glomail/glomail/session"
	"github.com/glomail/glomail/store"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// Functions

// initLogger initializes a JSON gokit-logger set
// to the according log level supplied via cli flag.
func initLogger(loglevel string) log.Logger {

	logger := log.NewJSONLogger(log.NewSyncWriter(os.Stdout))
	logger = log.With(logger,
		"ts", log.DefaultTimestampUTC,
		"caller", log.DefaultCaller,
	)

	switch strings.ToLower(loglevel) {
	case "info":
		logger = level.NewFilter(logger, level.AllowInfo())
	case "warn":
		logger = level.NewFilter(logger, level.AllowWarn())
	case "error":
		logger = level.NewFilter(logger, level.AllowError())
	default:
		logger = level.NewFilter(logger, level.AllowDebug())
	}

	return logger
}

func main() {

	// Parse command-line flag that defines a config path.
	configFlag := flag.String("config", "config.toml", "Provide path to configuration file in TOML syntax.")
	loglevelFlag := flag.String("loglevel", "debug", "This flag sets the default logging level.")
	flag.Parse()

	logger := initLogger(*loglevelFlag)

	// Read configuration from file.
	conf, err := config.LoadConfig(*configFlag)
	if err != nil {
		level.Error(logger).Log(
			"msg", "failed to load the config", "err", err,
		)
		os.Exit(1)
	}

	// Overlay deployment-specific values from an
	// optional .env file.
	if env, err := config.LoadEnv(); err == nil {
		conf.ApplyEnv(env)
	} else {
		level.Debug(logger).Log("msg", "no .env overrides applied", "err", err)
	}

	// Initialize the file-backed mailbox store.
	mailbox, err := store.NewService(conf.Storage.DataRoot, conf.Storage.LostMailRoot)
	if err != nil {
		level.Error(logger).Log(
			"msg", "failed to initialize the mailbox store",
			"err", err,
		)
		os.Exit(2)
	}
	mailbox = store.NewLoggingService(mailbox, log.With(logger, "component", "store"))

	metrics := NewGlomailMetrics(conf.Server.PrometheusAddr)

	// Initialize the session registry on top of the store.
	sessions := session.NewRegistry(mailbox)
	sessions = session.NewLoggingService(sessions, log.With(logger, "component", "session"))

	// Initialize the mail router with its SMTP relay client.
	relayClient := relay.NewClient(
		conf.SMTP.RelayAddr,
		conf.SMTP.LocalName,
		time.Duration(conf.SMTP.TimeoutSec)*time.Second,
	)

	mailRouter := router.NewService(mailbox, relayClient, conf.Server.LocalDomain)
	mailRouter = router.NewLoggingService(mailRouter, log.With(logger, "component", "router"))
	mailRouter = router.NewMetricsService(mailRouter,
		metrics.Router.DeliveredLocal,
		metrics.Router.Relayed,
		metrics.Router.Lost,
	)

	// Initialize the public endpoint service.
	endpoint := server.NewService(log.With(logger, "component", "server"), sessions, mailbox, mailRouter)
	endpoint = server.NewLoggingService(endpoint, log.With(logger, "component", "server"))
	endpoint = server.NewMetricsService(endpoint,
		metrics.Server.Registrations,
		metrics.Server.Logins,
		metrics.Server.Logouts,
	)

	listener, err := net.Listen("tcp", conf.Server.ListenMailAddr)
	if err != nil {
		level.Error(logger).Log(
			"msg", "failed to open listening mail socket",
			"err", err,
		)
		os.Exit(3)
	}
	defer listener.Close()

	go runPromHTTP(log.With(logger, "component", "prometheus"), conf.Server.PrometheusAddr)

	level.Info(logger).Log(
		"msg", "glomail server accepting connections",
		"addr", conf.Server.ListenMailAddr,
		"local_domain", conf.Server.LocalDomain,
		"greeting", conf.Server.Greeting,
	)

	// Loop on incoming connections.
	if err := endpoint.Run(listener); err != nil {
		level.Error(logger).Log(
			"msg", "server terminated with failure",
			"err", err,
		)
		os.Exit(4)
	}
}
