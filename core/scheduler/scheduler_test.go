package scheduler_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/certwatch/core/certstore"
	"github.com/dmitrymomot/certwatch/core/domain"
	"github.com/dmitrymomot/certwatch/core/scheduler"
	"github.com/dmitrymomot/certwatch/pkg/selfsigned"
)

func testDomainConfig(host string) domain.Config {
	return domain.Config{
		Domain:               host,
		Email:                "admin@example.dev",
		KeySize:              2048,
		RenewalThresholdDays: 30,
	}
}

// issueCA generates a leaf signed by a throwaway CA, so the stored record
// classifies as CA-issued rather than self-signed.
func issueCA(t *testing.T, host string, notAfter time.Time) *certstore.Material {
	t.Helper()

	caKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	caTemplate := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "Trusted Test CA"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              notAfter.Add(24 * time.Hour),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, &caTemplate, &caTemplate, &caKey.PublicKey, caKey)
	require.NoError(t, err)
	caCert, err := x509.ParseCertificate(caDER)
	require.NoError(t, err)

	leafKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	leafTemplate := x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: host},
		DNSNames:     []string{host},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     notAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, &leafTemplate, caCert, &leafKey.PublicKey, caKey)
	require.NoError(t, err)

	leafPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: leafDER})
	caPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: caDER})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(leafKey)})

	return &certstore.Material{
		Fullchain:  append(leafPEM, caPEM...),
		PrivateKey: keyPEM,
		Chain:      caPEM,
	}
}

func newStore(t *testing.T) *certstore.Store {
	t.Helper()
	s, err := certstore.New(t.TempDir())
	require.NoError(t, err)
	return s
}

func readOutcomes(t *testing.T, store *certstore.Store, host string) []scheduler.Outcome {
	t.Helper()

	data, err := os.ReadFile(store.OutcomeLogPath(host))
	require.NoError(t, err)

	var outcomes []scheduler.Outcome
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var o scheduler.Outcome
		require.NoError(t, dec.Decode(&o))
		outcomes = append(outcomes, o)
	}
	return outcomes
}

func TestNew(t *testing.T) {
	store := newStore(t)

	t.Run("requires acquirer", func(t *testing.T) {
		_, err := scheduler.New(testDomainConfig("example.dev"), scheduler.Config{}, store, nil, &mockProxy{})
		assert.ErrorIs(t, err, scheduler.ErrInvalidConfig)
	})

	t.Run("requires proxy manager", func(t *testing.T) {
		_, err := scheduler.New(testDomainConfig("example.dev"), scheduler.Config{}, store, &mockAcquirer{}, nil)
		assert.ErrorIs(t, err, scheduler.ErrInvalidConfig)
	})

	t.Run("rejects invalid domain config", func(t *testing.T) {
		cfg := testDomainConfig("example.dev")
		cfg.Email = "not-an-email"
		_, err := scheduler.New(cfg, scheduler.Config{}, store, &mockAcquirer{}, &mockProxy{})
		assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	})
}

func TestRunCycleAcquiresForPublicDomain(t *testing.T) {
	store := newStore(t)
	notAfter := time.Now().Add(90 * 24 * time.Hour)
	acq := &mockAcquirer{material: issueCA(t, "example.dev", notAfter)}
	proxy := &mockProxy{}

	s, err := scheduler.New(testDomainConfig("example.dev"), scheduler.Config{}, store, acq, proxy)
	require.NoError(t, err)

	outcome, err := s.RunCycle(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, scheduler.ResultRenewed, outcome.Result)
	assert.Equal(t, 1, acq.callCount())
	assert.Equal(t, 1, proxy.applyCount())
	assert.Equal(t, 1, proxy.reloadCount())

	rec, err := store.Load("example.dev")
	require.NoError(t, err)
	assert.Equal(t, certstore.IssuerProductionCA, rec.Issuer)
	assert.True(t, rec.NotAfter.After(time.Now().Add(30*24*time.Hour)),
		"a fresh certificate outlives the renewal threshold")

	// The rendered vhost must reference the freshly stored material.
	assert.Contains(t, string(proxy.lastApplied()), rec.FullchainPath)
	assert.Contains(t, string(proxy.lastApplied()), rec.PrivateKeyPath)

	outcomes := readOutcomes(t, store, "example.dev")
	require.Len(t, outcomes, 1)
	assert.Equal(t, scheduler.ResultRenewed, outcomes[0].Result)
	assert.Equal(t, "example.dev", outcomes[0].Domain)
	assert.NotEmpty(t, outcomes[0].ID)
}

func TestRunCycleSelfSignsForLocalDomain(t *testing.T) {
	store := newStore(t)
	acq := &mockAcquirer{err: errors.New("must not be called")}
	proxy := &mockProxy{}

	s, err := scheduler.New(testDomainConfig("localhost"), scheduler.Config{}, store, acq, proxy)
	require.NoError(t, err)

	outcome, err := s.RunCycle(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, scheduler.ResultRenewed, outcome.Result)
	assert.Zero(t, acq.callCount(), "local domains never reach the CA")

	rec, err := store.Load("localhost")
	require.NoError(t, err)
	assert.Equal(t, certstore.IssuerSelfSigned, rec.Issuer)
}

func TestRunCycleSkipsValidCertificate(t *testing.T) {
	store := newStore(t)
	_, err := store.Save("example.dev", *issueCA(t, "example.dev", time.Now().Add(90*24*time.Hour)))
	require.NoError(t, err)

	acq := &mockAcquirer{}
	proxy := &mockProxy{}
	s, err := scheduler.New(testDomainConfig("example.dev"), scheduler.Config{}, store, acq, proxy)
	require.NoError(t, err)

	outcome, err := s.RunCycle(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, scheduler.ResultSkippedNotDue, outcome.Result)
	assert.Zero(t, acq.callCount())
	assert.Zero(t, proxy.applyCount())
	assert.Zero(t, proxy.reloadCount())
}

func TestRunCycleForceRenewsValidCertificate(t *testing.T) {
	store := newStore(t)
	_, err := store.Save("example.dev", *issueCA(t, "example.dev", time.Now().Add(90*24*time.Hour)))
	require.NoError(t, err)

	acq := &mockAcquirer{material: issueCA(t, "example.dev", time.Now().Add(120*24*time.Hour))}
	proxy := &mockProxy{}
	s, err := scheduler.New(testDomainConfig("example.dev"), scheduler.Config{}, store, acq, proxy)
	require.NoError(t, err)

	outcome, err := s.RunCycle(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, scheduler.ResultRenewed, outcome.Result)
	assert.Equal(t, 1, acq.callCount())
}

func TestRunCycleFallsBackToSelfSigned(t *testing.T) {
	store := newStore(t)
	acq := &mockAcquirer{err: errors.New("urn:ietf:params:acme:error:rateLimited: slow down")}
	proxy := &mockProxy{}

	s, err := scheduler.New(testDomainConfig("example.dev"), scheduler.Config{}, store, acq, proxy)
	require.NoError(t, err)

	outcome, err := s.RunCycle(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, scheduler.ResultFellBackSelfSigned, outcome.Result)
	assert.Contains(t, outcome.Detail, "rateLimited")

	// The proxy still got a working certificate.
	rec, err := store.Load("example.dev")
	require.NoError(t, err)
	assert.Equal(t, certstore.IssuerSelfSigned, rec.Issuer)
	assert.Equal(t, 1, proxy.reloadCount())
}

func TestRunCycleKeepsUsableCertificateOnFailure(t *testing.T) {
	store := newStore(t)

	// Inside the renewal window but still serving fine.
	prev, err := store.Save("example.dev", *issueCA(t, "example.dev", time.Now().Add(10*24*time.Hour)))
	require.NoError(t, err)

	acq := &mockAcquirer{err: errors.New("acme: connection refused")}
	proxy := &mockProxy{}
	s, err := scheduler.New(testDomainConfig("example.dev"), scheduler.Config{}, store, acq, proxy)
	require.NoError(t, err)

	outcome, err := s.RunCycle(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, scheduler.ResultFailed, outcome.Result)

	rec, err := store.Load("example.dev")
	require.NoError(t, err)
	assert.Equal(t, certstore.IssuerProductionCA, rec.Issuer)
	assert.WithinDuration(t, prev.NotAfter, rec.NotAfter, time.Second)
	assert.Zero(t, proxy.applyCount(), "last-known-good configuration stays active")
}

func TestRunCycleUpgradesSelfSigned(t *testing.T) {
	store := newStore(t)
	cert, err := selfsigned.Issue("example.dev", 2048, time.Now())
	require.NoError(t, err)
	_, err = store.Save("example.dev", certstore.Material{Fullchain: cert.CertPEM, PrivateKey: cert.KeyPEM})
	require.NoError(t, err)

	t.Run("upgrade failure keeps self-signed", func(t *testing.T) {
		acq := &mockAcquirer{err: errors.New("acme: challenge failed")}
		proxy := &mockProxy{}
		s, err := scheduler.New(testDomainConfig("example.dev"), scheduler.Config{}, store, acq, proxy)
		require.NoError(t, err)

		outcome, err := s.RunCycle(context.Background(), false)
		require.NoError(t, err, "a failed upgrade is not an error")
		assert.Equal(t, scheduler.ResultFailed, outcome.Result)

		rec, err := store.Load("example.dev")
		require.NoError(t, err)
		assert.Equal(t, certstore.IssuerSelfSigned, rec.Issuer)
	})

	t.Run("upgrade success replaces self-signed", func(t *testing.T) {
		acq := &mockAcquirer{material: issueCA(t, "example.dev", time.Now().Add(90*24*time.Hour))}
		proxy := &mockProxy{}
		s, err := scheduler.New(testDomainConfig("example.dev"), scheduler.Config{}, store, acq, proxy)
		require.NoError(t, err)

		outcome, err := s.RunCycle(context.Background(), false)
		require.NoError(t, err)
		assert.Equal(t, scheduler.ResultRenewed, outcome.Result)

		rec, err := store.Load("example.dev")
		require.NoError(t, err)
		assert.Equal(t, certstore.IssuerProductionCA, rec.Issuer)
	})
}

func TestRunCycleSelfSignFailureIsFatal(t *testing.T) {
	store := newStore(t)
	s, err := scheduler.New(testDomainConfig("localhost"), scheduler.Config{}, store, &mockAcquirer{}, &mockProxy{},
		scheduler.WithSelfSigner(func(string, int, time.Time) (*selfsigned.Certificate, error) {
			return nil, errors.New("entropy exhausted")
		}))
	require.NoError(t, err)

	outcome, err := s.RunCycle(context.Background(), false)
	assert.ErrorIs(t, err, scheduler.ErrSelfSignFailed)
	assert.Equal(t, scheduler.ResultFailed, outcome.Result)
}

func TestRunCycleProxyFailureKeepsMaterial(t *testing.T) {
	store := newStore(t)
	acq := &mockAcquirer{material: issueCA(t, "example.dev", time.Now().Add(90*24*time.Hour))}
	proxy := &mockProxy{applyErr: errors.New("nginx: [emerg] invalid parameter")}

	s, err := scheduler.New(testDomainConfig("example.dev"), scheduler.Config{}, store, acq, proxy)
	require.NoError(t, err)

	outcome, err := s.RunCycle(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, scheduler.ResultFailed, outcome.Result)

	// Material stays on disk for the next cycle to activate.
	rec, err := store.Load("example.dev")
	require.NoError(t, err)
	assert.Equal(t, certstore.IssuerProductionCA, rec.Issuer)
}

func TestRunCycleHonorsCancellation(t *testing.T) {
	store := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	acq := &mockAcquirer{material: issueCA(t, "example.dev", time.Now().Add(90*24*time.Hour))}
	proxy := &mockProxy{}
	s, err := scheduler.New(testDomainConfig("example.dev"), scheduler.Config{}, store, acq, proxy)
	require.NoError(t, err)

	cancel()
	outcome, err := s.RunCycle(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, scheduler.ResultFailed, outcome.Result)
	assert.Contains(t, outcome.Detail, "canceled")
	assert.Zero(t, proxy.applyCount())

	_, loadErr := store.Load("example.dev")
	assert.ErrorIs(t, loadErr, certstore.ErrRecordNotFound, "nothing written after cancellation")
}

func TestStatus(t *testing.T) {
	store := newStore(t)
	s, err := scheduler.New(testDomainConfig("example.dev"), scheduler.Config{}, store, &mockAcquirer{}, &mockProxy{})
	require.NoError(t, err)

	st := s.Status()
	assert.Equal(t, "example.dev", st.Domain)
	assert.Equal(t, "absent", string(st.State))

	_, err = store.Save("example.dev", *issueCA(t, "example.dev", time.Now().Add(90*24*time.Hour)))
	require.NoError(t, err)

	st = s.Status()
	assert.Equal(t, "valid", string(st.State))
	assert.Equal(t, certstore.IssuerProductionCA, st.Issuer)
	assert.False(t, st.NotAfter.IsZero())
}
