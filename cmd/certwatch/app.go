package main

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/certwatch/core/acme"
	"github.com/dmitrymomot/certwatch/core/certstore"
	"github.com/dmitrymomot/certwatch/core/config"
	"github.com/dmitrymomot/certwatch/core/domain"
	"github.com/dmitrymomot/certwatch/core/logger"
	"github.com/dmitrymomot/certwatch/core/ops"
	"github.com/dmitrymomot/certwatch/core/proxyconf"
	"github.com/dmitrymomot/certwatch/core/scheduler"
	"github.com/dmitrymomot/certwatch/core/server"
)

// appConfig collects the settings that belong to the binary itself rather
// than to any one subsystem.
type appConfig struct {
	// CertDir is the root of the certificate store, one subdirectory per domain.
	CertDir string `env:"CERT_DIR" envDefault:"/var/lib/certwatch"`

	// DirectoryURL overrides the ACME directory, primarily for local CAs.
	DirectoryURL string `env:"ACME_DIRECTORY_URL"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// app wires the subsystems together for the CLI commands.
type app struct {
	log     *slog.Logger
	dom     domain.Config
	store   *certstore.Store
	sched   *scheduler.Scheduler
	srv     *server.Server
	handler http.Handler
}

func buildApp(jsonLogs bool) (*app, error) {
	var ac appConfig
	if err := config.Load(&ac); err != nil {
		return nil, fmt.Errorf("load app config: %w", err)
	}

	logOpts := []logger.Option{logger.WithLevel(parseLevel(ac.LogLevel))}
	if jsonLogs {
		logOpts = append(logOpts, logger.WithJSONFormatter())
	}
	log := logger.New(logOpts...)

	dom, err := domain.Resolve()
	if err != nil {
		return nil, err
	}

	store, err := certstore.New(ac.CertDir)
	if err != nil {
		return nil, err
	}

	var schedCfg scheduler.Config
	if err := config.Load(&schedCfg); err != nil {
		return nil, fmt.Errorf("load scheduler config: %w", err)
	}

	engine, err := acme.New(acme.Config{
		Email:        dom.Email,
		Staging:      dom.Staging,
		KeySize:      dom.KeySize,
		HTTP01Addr:   schedCfg.ChallengeAddr,
		DirectoryURL: ac.DirectoryURL,
	}, acme.WithLogger(log))
	if err != nil {
		return nil, err
	}

	var proxyCfg proxyconf.Config
	if err := config.Load(&proxyCfg); err != nil {
		return nil, fmt.Errorf("load proxy config: %w", err)
	}
	manager, err := proxyconf.NewManager(proxyCfg, proxyconf.WithLogger(log))
	if err != nil {
		return nil, err
	}

	schedOpts := []scheduler.Option{scheduler.WithLogger(log)}
	if proxyCfg.TemplatePath != "" {
		renderer, err := proxyconf.NewRendererFromFile(proxyCfg.TemplatePath)
		if err != nil {
			return nil, err
		}
		schedOpts = append(schedOpts, scheduler.WithRenderer(renderer))
	}

	sched, err := scheduler.New(dom, schedCfg, store, engine, manager, schedOpts...)
	if err != nil {
		return nil, err
	}

	var srvCfg server.Config
	if err := config.Load(&srvCfg); err != nil {
		return nil, fmt.Errorf("load ops server config: %w", err)
	}
	srv, err := server.NewFromConfig(srvCfg, server.WithLogger(log))
	if err != nil {
		return nil, err
	}

	return &app{
		log:     log,
		dom:     dom,
		store:   store,
		sched:   sched,
		srv:     srv,
		handler: ops.NewHandler(sched, sched, log).Router(),
	}, nil
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
