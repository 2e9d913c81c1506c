package proxyconf

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dmitrymomot/certwatch/core/logger"
)

const defaultNginxBin = "nginx"

// Config holds the settings for proxy configuration management.
type Config struct {
	// NginxBin is the proxy binary used for syntax checks and reloads.
	NginxBin string `env:"NGINX_BIN" envDefault:"nginx"`

	// ActivePath is the live vhost configuration file included by the
	// proxy's main configuration.
	ActivePath string `env:"NGINX_CONF_PATH,required"`

	// TemplatePath optionally overrides the built-in vhost template.
	TemplatePath string `env:"NGINX_CONF_TEMPLATE"`
}

// Manager validates and activates rendered configurations, and signals the
// proxy to reload.
type Manager struct {
	runner     CommandRunner
	nginxBin   string
	activePath string
	log        *slog.Logger
}

// Option configures a Manager during initialization.
type Option func(*Manager)

// WithCommandRunner swaps the command execution backend, primarily for tests.
func WithCommandRunner(runner CommandRunner) Option {
	return func(m *Manager) {
		m.runner = runner
	}
}

// WithLogger sets the logger for validation and reload events.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		m.log = log
	}
}

// NewManager creates a configuration manager for the given active path.
func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	if strings.TrimSpace(cfg.ActivePath) == "" {
		return nil, ErrActivePathRequired
	}

	bin := strings.TrimSpace(cfg.NginxBin)
	if bin == "" {
		bin = defaultNginxBin
	}

	m := &Manager{
		runner:     ExecRunner{},
		nginxBin:   bin,
		activePath: cfg.ActivePath,
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// ActivePath returns the live configuration file location.
func (m *Manager) ActivePath() string {
	return m.activePath
}

// StagedPath returns the location rendered configurations are validated at.
func (m *Manager) StagedPath() string {
	return m.activePath + ".staged"
}

// Apply writes the rendered configuration to the staging path, runs the
// proxy's syntax check against it, and on success atomically replaces the
// active file. On any failure the active file remains byte-identical.
func (m *Manager) Apply(ctx context.Context, rendered []byte) error {
	staged := m.StagedPath()
	if err := os.WriteFile(staged, rendered, 0o644); err != nil {
		return fmt.Errorf("%w: write staged configuration: %w", ErrConfigInvalid, err)
	}
	defer func() { _ = os.Remove(staged) }()

	output, err := m.runner.Run(ctx, m.nginxBin, "-t", "-c", staged)
	if err != nil {
		m.log.WarnContext(ctx, "proxy configuration rejected by syntax check",
			logger.Component("proxyconf"),
			logger.Error(err),
			slog.String("output", string(output)),
		)
		return fmt.Errorf("%w: %s: %w", ErrConfigInvalid, strings.TrimSpace(string(output)), err)
	}

	// Validated: replace the active file via temporary write + rename so a
	// reloading proxy never reads a partial configuration.
	tmpPath := m.activePath + ".tmp"
	if err := os.WriteFile(tmpPath, rendered, 0o644); err != nil {
		return fmt.Errorf("%w: write configuration: %w", ErrConfigInvalid, err)
	}
	if err := os.Rename(tmpPath, m.activePath); err != nil {
		_ = os.Remove(tmpPath) // Best effort cleanup
		return fmt.Errorf("%w: activate configuration: %w", ErrConfigInvalid, err)
	}

	m.log.InfoContext(ctx, "proxy configuration activated",
		logger.Component("proxyconf"),
		slog.String("path", m.activePath),
	)
	return nil
}

// Reload signals the running proxy to gracefully reload its configuration.
// The context bounds how long the acknowledgement is awaited. On failure the
// validated files are deliberately NOT rolled back: their content passed the
// syntax check, only the reload mechanism failed.
func (m *Manager) Reload(ctx context.Context) error {
	output, err := m.runner.Run(ctx, m.nginxBin, "-s", "reload")
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrReloadFailed, strings.TrimSpace(string(output)), err)
	}

	m.log.InfoContext(ctx, "proxy reloaded", logger.Component("proxyconf"))
	return nil
}
