package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/certwatch/core/certstate"
	"github.com/dmitrymomot/certwatch/core/certstore"
	"github.com/dmitrymomot/certwatch/core/domain"
	"github.com/dmitrymomot/certwatch/core/logger"
	"github.com/dmitrymomot/certwatch/core/proxyconf"
	"github.com/dmitrymomot/certwatch/pkg/selfsigned"
)

// Config holds the timing settings of the renewal loop.
type Config struct {
	// CheckInterval is how often the reconciliation cycle runs.
	CheckInterval time.Duration `env:"CERT_CHECK_INTERVAL" envDefault:"12h"`

	// ACMETimeout bounds a single CA issuance attempt.
	ACMETimeout time.Duration `env:"CERT_ACME_TIMEOUT" envDefault:"90s"`

	// ChallengeAddr is the listen address of the internal HTTP-01 responder,
	// rendered into the proxy configuration as the challenge upstream.
	ChallengeAddr string `env:"CERT_HTTP01_ADDR" envDefault:"127.0.0.1:5002"`

	// UpstreamAddr is where the proxy forwards application traffic.
	UpstreamAddr string `env:"CERT_UPSTREAM_ADDR" envDefault:"127.0.0.1:8000"`
}

// Acquirer obtains CA-signed certificate material for a domain.
type Acquirer interface {
	Obtain(ctx context.Context, domain string) (*certstore.Material, error)
}

// ProxyManager activates a rendered proxy configuration and reloads the proxy.
type ProxyManager interface {
	Apply(ctx context.Context, rendered []byte) error
	Reload(ctx context.Context) error
}

// selfSignFunc issues a locally trusted certificate. Injectable for tests.
type selfSignFunc func(domain string, keySize int, now time.Time) (*selfsigned.Certificate, error)

// Scheduler drives the certificate reconciliation loop for one domain.
type Scheduler struct {
	domain   domain.Config
	cfg      Config
	store    *certstore.Store
	acquirer Acquirer
	proxy    ProxyManager
	renderer *proxyconf.Renderer
	selfSign selfSignFunc
	now      func() time.Time
	log      *slog.Logger

	// mu serializes cycles; the on-disk state is the only shared mutable
	// resource and must never see two concurrent pipelines.
	mu sync.Mutex
}

// Option configures optional Scheduler dependencies.
type Option func(*Scheduler)

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Scheduler) {
		s.log = log
	}
}

// WithRenderer overrides the default vhost template renderer.
func WithRenderer(r *proxyconf.Renderer) Option {
	return func(s *Scheduler) {
		s.renderer = r
	}
}

// WithClock overrides the time source for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// WithSelfSigner overrides self-signed issuance for tests.
func WithSelfSigner(fn selfSignFunc) Option {
	return func(s *Scheduler) {
		s.selfSign = fn
	}
}

// New builds a Scheduler. The acquirer and proxy manager are required; the
// renderer, clock, and self-signed issuer default to production behavior.
func New(domainCfg domain.Config, cfg Config, store *certstore.Store, acquirer Acquirer, proxy ProxyManager, opts ...Option) (*Scheduler, error) {
	if err := domainCfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("%w: nil certificate store", ErrInvalidConfig)
	}
	if acquirer == nil {
		return nil, fmt.Errorf("%w: nil acquirer", ErrInvalidConfig)
	}
	if proxy == nil {
		return nil, fmt.Errorf("%w: nil proxy manager", ErrInvalidConfig)
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 12 * time.Hour
	}
	if cfg.ACMETimeout <= 0 {
		cfg.ACMETimeout = 90 * time.Second
	}

	s := &Scheduler{
		domain:   domainCfg,
		cfg:      cfg,
		store:    store,
		acquirer: acquirer,
		proxy:    proxy,
		renderer: proxyconf.NewRenderer(),
		selfSign: selfsigned.Issue,
		now:      time.Now,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("scheduler"), logger.Domain(domainCfg.Domain))

	return s, nil
}

// Start runs the reconciliation loop until the context is canceled or a
// fatal error occurs. The first cycle runs immediately; it is the only cycle
// that honors the operator-level force-renewal flag, so a restart loop cannot
// hammer the CA.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.RunCycle(ctx, s.domain.ForceRenewal); err != nil {
		return err
	}

	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.RunCycle(ctx, false); err != nil {
				return err
			}
		}
	}
}

// RunCycle executes one reconciliation cycle, blocking until any in-flight
// cycle finishes first. The returned error is non-nil only for fatal
// conditions; ordinary issuance failures are reported through the Outcome.
func (s *Scheduler) RunCycle(ctx context.Context, force bool) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycle(ctx, force)
}

// ForceRenew runs an operator-triggered cycle with the force flag set. It
// does not queue behind a running cycle; callers retry instead.
func (s *Scheduler) ForceRenew(ctx context.Context) (Outcome, error) {
	if !s.mu.TryLock() {
		return Outcome{}, ErrCycleInProgress
	}
	defer s.mu.Unlock()
	return s.cycle(ctx, true)
}

// Status reports the current on-disk certificate state for the ops surface.
type Status struct {
	Domain    string                `json:"domain"`
	State     certstate.State       `json:"state"`
	Issuer    certstore.IssuerClass `json:"issuer,omitempty"`
	NotBefore time.Time             `json:"not_before,omitzero"`
	NotAfter  time.Time             `json:"not_after,omitzero"`
}

// Status re-evaluates the stored certificate and never consults in-memory
// cycle state, so it stays truthful across restarts.
func (s *Scheduler) Status() Status {
	rec, loadErr := s.store.Load(s.domain.Domain)
	st := Status{
		Domain: s.domain.Domain,
		State:  certstate.Evaluate(rec, loadErr, s.domain.Domain, s.domain.Threshold(), s.now()),
	}
	if rec != nil {
		st.Issuer = rec.Issuer
		st.NotBefore = rec.NotBefore
		st.NotAfter = rec.NotAfter
	}
	return st
}

// cycle runs the evaluate, acquire, store, apply, reload pipeline once.
// Callers must hold s.mu.
func (s *Scheduler) cycle(ctx context.Context, force bool) (Outcome, error) {
	now := s.now()
	outcome := Outcome{
		ID:          uuid.New(),
		Domain:      s.domain.Domain,
		AttemptedAt: now,
	}
	log := s.log.With(logger.ID("cycle_id", outcome.ID.String()))

	rec, loadErr := s.store.Load(s.domain.Domain)
	state := certstate.Evaluate(rec, loadErr, s.domain.Domain, s.domain.Threshold(), now)
	action := certstate.Decide(state, force, s.domain.Public())
	log.InfoContext(ctx, "renewal cycle started",
		logger.State(string(state)),
		slog.String("action", string(action)),
		slog.Bool("force", force))

	if action == certstate.ActionSkip {
		outcome.Result = ResultSkippedNotDue
		outcome.Detail = fmt.Sprintf("certificate state %q requires no action", state)
		s.journal(log, outcome)
		return outcome, nil
	}

	mat, result, detail, err := s.acquire(ctx, log, action, rec, now)
	if err != nil {
		outcome.Result = ResultFailed
		outcome.Detail = err.Error()
		s.journal(log, outcome)
		return outcome, err
	}
	if mat == nil {
		outcome.Result = result
		outcome.Detail = detail
		s.journal(log, outcome)
		return outcome, nil
	}

	// Point of no return: the atomic store write is never interrupted, but
	// cancellation is still honored up to here.
	if cerr := ctx.Err(); cerr != nil {
		outcome.Result = ResultFailed
		outcome.Detail = "cycle canceled before store write"
		s.journal(log, outcome)
		return outcome, nil
	}

	newRec, err := s.store.Save(s.domain.Domain, *mat)
	if err != nil {
		outcome.Result = ResultFailed
		outcome.Detail = fmt.Sprintf("store certificate material: %s", err)
		s.journal(log, outcome)
		return outcome, nil
	}

	if err := s.activate(ctx, newRec); err != nil {
		// Material is on disk and will be picked up by the next successful
		// apply; the proxy keeps serving its last working configuration.
		outcome.Result = ResultFailed
		outcome.Detail = fmt.Sprintf("activate proxy configuration: %s", err)
		s.journal(log, outcome)
		return outcome, nil
	}

	outcome.Result = result
	outcome.Detail = detail
	log.InfoContext(ctx, "certificate installed",
		logger.Result(string(result)),
		logger.State(string(certstate.StateValid)),
		logger.Expiry(newRec.NotAfter))
	s.journal(log, outcome)
	return outcome, nil
}

// acquire produces certificate material for the decided action. A nil
// material with a nil error means the cycle ends without touching disk; the
// result and detail describe why. A non-nil error is fatal to the loop.
func (s *Scheduler) acquire(ctx context.Context, log *slog.Logger, action certstate.Action, rec *certstore.Record, now time.Time) (*certstore.Material, Result, string, error) {
	switch action {
	case certstate.ActionSelfSign:
		mat, err := s.issueSelfSigned(now)
		if err != nil {
			return nil, ResultFailed, "", err
		}
		return mat, ResultRenewed, "issued self-signed certificate", nil

	case certstate.ActionAcquireACME:
		mat, err := s.obtainCA(ctx)
		if err == nil {
			return mat, ResultRenewed, "obtained CA-signed certificate", nil
		}
		log.WarnContext(ctx, "issuance attempt failed", logger.Error(err))

		if s.hasUsableCertificate(rec, now) {
			// Last-known-good stays in place; the next cycle retries.
			return nil, ResultFailed, fmt.Sprintf("issuance failed, keeping current certificate: %s", err), nil
		}

		fallback, signErr := s.issueSelfSigned(now)
		if signErr != nil {
			return nil, ResultFailed, "", signErr
		}
		return fallback, ResultFellBackSelfSigned, fmt.Sprintf("issuance failed: %s", err), nil

	case certstate.ActionUpgradeACME:
		mat, err := s.obtainCA(ctx)
		if err != nil {
			// The self-signed certificate stays in place until it nears
			// expiry; the upgrade is retried opportunistically.
			log.WarnContext(ctx, "upgrade attempt failed", logger.Error(err))
			return nil, ResultFailed, fmt.Sprintf("upgrade to CA certificate failed, keeping self-signed: %s", err), nil
		}
		return mat, ResultRenewed, "upgraded self-signed to CA-signed certificate", nil
	}

	return nil, ResultFailed, fmt.Sprintf("no handler for action %q", action), nil
}

func (s *Scheduler) obtainCA(ctx context.Context) (*certstore.Material, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ACMETimeout)
	defer cancel()
	return s.acquirer.Obtain(ctx, s.domain.Domain)
}

func (s *Scheduler) issueSelfSigned(now time.Time) (*certstore.Material, error) {
	cert, err := s.selfSign(s.domain.Domain, s.domain.KeySize, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSelfSignFailed, err)
	}
	return &certstore.Material{
		Fullchain:  cert.CertPEM,
		PrivateKey: cert.KeyPEM,
	}, nil
}

// activate renders the vhost for the freshly stored record, validates and
// swaps it in, then reloads the proxy.
func (s *Scheduler) activate(ctx context.Context, rec *certstore.Record) error {
	rendered, err := s.renderer.Render(proxyconf.TemplateData{
		Domain:         rec.Domain,
		FullchainPath:  rec.FullchainPath,
		PrivateKeyPath: rec.PrivateKeyPath,
		ChainPath:      rec.ChainPath,
		ChallengeAddr:  s.cfg.ChallengeAddr,
		UpstreamAddr:   s.cfg.UpstreamAddr,
	})
	if err != nil {
		return err
	}
	if err := s.proxy.Apply(ctx, rendered); err != nil {
		return err
	}
	return s.proxy.Reload(ctx)
}

// journal appends the outcome to the domain's renewal log. Journal failures
// are logged and swallowed: observability must not break renewals.
func (s *Scheduler) journal(log *slog.Logger, outcome Outcome) {
	log.Info("renewal cycle finished",
		logger.Result(string(outcome.Result)),
		slog.String("detail", outcome.Detail))

	line, err := json.Marshal(outcome)
	if err != nil {
		log.Error("marshal renewal outcome", logger.Error(err))
		return
	}
	if err := s.store.AppendOutcomeLog(s.domain.Domain, line); err != nil {
		log.Error("append renewal outcome", logger.Error(err))
	}
}

// hasUsableCertificate reports whether the stored certificate can still serve
// TLS traffic for the configured domain right now, which decides between
// retaining it and falling back to self-signed after a failed issuance.
func (s *Scheduler) hasUsableCertificate(rec *certstore.Record, now time.Time) bool {
	if rec == nil || rec.Leaf() == nil {
		return false
	}
	if !rec.Matches(s.domain.Domain) {
		return false
	}
	return !rec.NotBefore.After(now) && rec.NotAfter.After(now)
}
