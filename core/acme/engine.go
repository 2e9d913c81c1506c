package acme

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"

	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/go-acme/lego/v4/certificate"
	"github.com/go-acme/lego/v4/challenge"
	"github.com/go-acme/lego/v4/challenge/http01"
	"github.com/go-acme/lego/v4/lego"
	"github.com/go-acme/lego/v4/registration"

	"github.com/dmitrymomot/certwatch/core/certstore"
	"github.com/dmitrymomot/certwatch/core/logger"
)

// attemptState labels the phases of a single acquisition attempt.
type attemptState string

const (
	stateStart              attemptState = "start"
	stateChallengeServerUp  attemptState = "challenge_server_up"
	stateChallengeRequested attemptState = "challenge_requested"
	stateChallengeValidated attemptState = "challenge_validated"
	stateCertificateIssued  attemptState = "certificate_issued"
	stateFinalized          attemptState = "finalized"
	stateAborted            attemptState = "aborted"
)

const defaultHTTP01Port = "80"

// Config holds the settings for the acquisition engine.
type Config struct {
	// Email is the ACME account contact address.
	Email string

	// Staging selects the CA's staging directory. Staging certificates are
	// not browser-trusted but do not consume production rate limits.
	Staging bool

	// KeySize is the RSA key size for issued certificate keys (2048/3072/4096).
	KeySize int

	// HTTP01Addr is the bind address (host:port) for the internal challenge
	// responder. Empty falls back to all interfaces on port 80.
	HTTP01Addr string

	// DirectoryURL overrides the CA directory chosen by Staging. Primarily
	// for tests against a local CA.
	DirectoryURL string
}

// Engine obtains certificates from an ACME CA via HTTP-01 validation.
type Engine struct {
	email        string
	directoryURL string
	keyType      certcrypto.KeyType
	http01Host   string
	http01Port   string

	clientFactory   clientFactory
	accountKeyMaker func() (crypto.PrivateKey, error)
	log             *slog.Logger
}

// Option configures an Engine during initialization.
type Option func(*Engine)

// WithClientFactory swaps the lego client construction, primarily for tests.
func WithClientFactory(factory func(*lego.Config) (Client, error)) Option {
	return func(e *Engine) {
		e.clientFactory = factory
	}
}

// WithLogger sets the logger for attempt state transitions.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// New creates an acquisition engine. The directory URL defaults to the
// Let's Encrypt production endpoint, or staging when cfg.Staging is set.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if strings.TrimSpace(cfg.Email) == "" {
		return nil, ErrEmailRequired
	}

	keyType, err := keyTypeForSize(cfg.KeySize)
	if err != nil {
		return nil, err
	}

	host, port, err := parseHTTP01Address(cfg.HTTP01Addr)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		email:         strings.TrimSpace(cfg.Email),
		directoryURL:  directoryURL(cfg),
		keyType:       keyType,
		http01Host:    host,
		http01Port:    port,
		clientFactory: defaultClientFactory,
		accountKeyMaker: func() (crypto.PrivateKey, error) {
			return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		},
		log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Obtain runs one acquisition attempt for the domain. On success it returns
// the issued material without writing anything to disk; on failure it
// returns a typed error and no partial material. The context bounds the
// whole attempt.
func (e *Engine) Obtain(ctx context.Context, domain string) (*certstore.Material, error) {
	log := e.log.With(logger.Component("acme"), logger.Domain(domain))
	log.InfoContext(ctx, "starting acquisition attempt",
		logger.Event(string(stateStart)),
		slog.String("directory", e.directoryURL),
	)

	accountKey, err := e.accountKeyMaker()
	if err != nil {
		return nil, e.abort(ctx, log, fmt.Errorf("%w: generate account key: %w", ErrIssuanceFailed, err))
	}

	user := &accountUser{email: e.email, key: accountKey}

	legoCfg := lego.NewConfig(user)
	legoCfg.CADirURL = e.directoryURL
	legoCfg.Certificate.KeyType = e.keyType

	client, err := e.clientFactory(legoCfg)
	if err != nil {
		return nil, e.abort(ctx, log, fmt.Errorf("%w: create acme client: %w", ErrIssuanceFailed, err))
	}

	if err := ctx.Err(); err != nil {
		return nil, e.abort(ctx, log, err)
	}

	provider := http01.NewProviderServer(e.http01Host, e.http01Port)
	if err := client.SetHTTP01Provider(provider); err != nil {
		return nil, e.abort(ctx, log, fmt.Errorf("%w: configure http-01 provider: %w", ErrChallengeFailed, err))
	}
	log.InfoContext(ctx, "challenge responder configured",
		logger.Event(string(stateChallengeServerUp)),
		slog.String("addr", net.JoinHostPort(e.http01Host, e.http01Port)),
	)

	reg, err := client.Register(registration.RegisterOptions{TermsOfServiceAgreed: true})
	if err != nil {
		return nil, e.abort(ctx, log, fmt.Errorf("%w: register account: %w", ErrIssuanceFailed, err))
	}
	user.registration = reg

	if err := ctx.Err(); err != nil {
		return nil, e.abort(ctx, log, err)
	}

	log.InfoContext(ctx, "requesting certificate", logger.Event(string(stateChallengeRequested)))

	res, err := e.obtainBounded(ctx, client, certificate.ObtainRequest{
		Domains: []string{domain},
		Bundle:  true,
	})
	if err != nil {
		return nil, e.abort(ctx, log, classifyObtainError(err))
	}

	log.InfoContext(ctx, "domain validated", logger.Event(string(stateChallengeValidated)))

	if len(res.Certificate) == 0 || len(res.PrivateKey) == 0 {
		return nil, e.abort(ctx, log, fmt.Errorf("%w: empty material received from CA", ErrIssuanceFailed))
	}
	log.InfoContext(ctx, "certificate issued", logger.Event(string(stateCertificateIssued)))

	mat := &certstore.Material{
		Fullchain:  res.Certificate,
		PrivateKey: res.PrivateKey,
		Chain:      res.IssuerCertificate,
	}

	log.InfoContext(ctx, "acquisition finalized", logger.Event(string(stateFinalized)))
	return mat, nil
}

// obtainBounded runs the blocking lego exchange in a goroutine so the
// attempt honors the context deadline even though lego itself does not take
// a context.
func (e *Engine) obtainBounded(ctx context.Context, client Client, req certificate.ObtainRequest) (*certificate.Resource, error) {
	type obtainResult struct {
		res *certificate.Resource
		err error
	}

	resCh := make(chan obtainResult, 1)
	go func() {
		res, err := client.Obtain(req)
		resCh <- obtainResult{res: res, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrChallengeFailed, ctx.Err())
	case r := <-resCh:
		return r.res, r.err
	}
}

func (e *Engine) abort(ctx context.Context, log *slog.Logger, err error) error {
	log.WarnContext(ctx, "acquisition attempt aborted",
		logger.Event(string(stateAborted)),
		logger.Error(err),
	)
	return err
}

// directoryURL resolves the CA directory endpoint for the configuration.
func directoryURL(cfg Config) string {
	if url := strings.TrimSpace(cfg.DirectoryURL); url != "" {
		return url
	}
	if cfg.Staging {
		return lego.LEDirectoryStaging
	}
	return lego.LEDirectoryProduction
}

func keyTypeForSize(size int) (certcrypto.KeyType, error) {
	switch size {
	case 0, 2048:
		return certcrypto.RSA2048, nil
	case 3072:
		return certcrypto.RSA3072, nil
	case 4096:
		return certcrypto.RSA4096, nil
	default:
		return "", fmt.Errorf("%w: %d", ErrUnsupportedKeySize, size)
	}
}

func parseHTTP01Address(addr string) (string, string, error) {
	if strings.TrimSpace(addr) == "" {
		return "", defaultHTTP01Port, nil
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", "", fmt.Errorf("invalid http-01 address %q: %w", addr, err)
	}
	if port == "" {
		port = defaultHTTP01Port
	}
	return host, port, nil
}

// rateLimitPatterns mark CA refusals; everything else that fails during the
// exchange is treated as a validation problem.
var rateLimitPatterns = []string{
	"ratelimited",
	"rate limit",
	"too many",
	"429",
}

var challengePatterns = []string{
	"challenge",
	"validation",
	"authorization",
	"dns",
	"no such host",
	"connection refused",
	"timeout",
	"deadline exceeded",
}

// classifyObtainError maps a raw lego error to the engine's failure taxonomy.
func classifyObtainError(err error) error {
	msg := strings.ToLower(err.Error())

	for _, pattern := range rateLimitPatterns {
		if strings.Contains(msg, pattern) {
			return fmt.Errorf("%w: %w", ErrIssuanceFailed, err)
		}
	}
	for _, pattern := range challengePatterns {
		if strings.Contains(msg, pattern) {
			return fmt.Errorf("%w: %w", ErrChallengeFailed, err)
		}
	}
	return fmt.Errorf("%w: %w", ErrIssuanceFailed, err)
}

// Client is the narrow slice of the lego client the engine depends on.
// The indirection keeps attempts testable without real ACME requests.
type Client interface {
	Register(options registration.RegisterOptions) (*registration.Resource, error)
	SetHTTP01Provider(provider challenge.Provider) error
	Obtain(request certificate.ObtainRequest) (*certificate.Resource, error)
}

type clientFactory func(*lego.Config) (Client, error)

func defaultClientFactory(cfg *lego.Config) (Client, error) {
	client, err := lego.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &legoClientAdapter{client: client}, nil
}

type legoClientAdapter struct {
	client *lego.Client
}

func (l *legoClientAdapter) Register(options registration.RegisterOptions) (*registration.Resource, error) {
	return l.client.Registration.Register(options)
}

func (l *legoClientAdapter) SetHTTP01Provider(provider challenge.Provider) error {
	return l.client.Challenge.SetHTTP01Provider(provider)
}

func (l *legoClientAdapter) Obtain(request certificate.ObtainRequest) (*certificate.Resource, error) {
	return l.client.Certificate.Obtain(request)
}

// accountUser satisfies lego's registration.User.
type accountUser struct {
	email        string
	registration *registration.Resource
	key          crypto.PrivateKey
}

func (u *accountUser) GetEmail() string {
	return u.email
}

func (u *accountUser) GetRegistration() *registration.Resource {
	return u.registration
}

func (u *accountUser) GetPrivateKey() crypto.PrivateKey {
	return u.key
}
