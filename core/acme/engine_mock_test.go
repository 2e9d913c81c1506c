package acme_test

import (
	"sync"

	"github.com/go-acme/lego/v4/certificate"
	"github.com/go-acme/lego/v4/challenge"
	"github.com/go-acme/lego/v4/lego"
	"github.com/go-acme/lego/v4/registration"

	"github.com/dmitrymomot/certwatch/core/acme"
)

// mockClient is a test implementation of acme.Client.
type mockClient struct {
	mu sync.Mutex

	registerFunc func(registration.RegisterOptions) (*registration.Resource, error)
	obtainFunc   func(certificate.ObtainRequest) (*certificate.Resource, error)

	providerSet   bool
	obtainCalls   int
	lastRequested []string
}

func (m *mockClient) Register(options registration.RegisterOptions) (*registration.Resource, error) {
	if m.registerFunc != nil {
		return m.registerFunc(options)
	}
	return &registration.Resource{}, nil
}

func (m *mockClient) SetHTTP01Provider(provider challenge.Provider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providerSet = true
	return nil
}

func (m *mockClient) Obtain(request certificate.ObtainRequest) (*certificate.Resource, error) {
	m.mu.Lock()
	m.obtainCalls++
	m.lastRequested = request.Domains
	m.mu.Unlock()

	if m.obtainFunc != nil {
		return m.obtainFunc(request)
	}
	return &certificate.Resource{
		Certificate:       []byte("cert-pem"),
		PrivateKey:        []byte("key-pem"),
		IssuerCertificate: []byte("issuer-pem"),
	}, nil
}

func (m *mockClient) ObtainCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.obtainCalls
}

// mockFactory returns a client factory handing out the given mock and
// recording the lego configuration it was built with.
func mockFactory(client *mockClient, captured **lego.Config) func(*lego.Config) (acme.Client, error) {
	return func(cfg *lego.Config) (acme.Client, error) {
		if captured != nil {
			*captured = cfg
		}
		return client, nil
	}
}
