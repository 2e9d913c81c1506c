package certstore

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
)

const (
	fullchainFile  = "fullchain.pem"
	privateKeyFile = "privkey.pem"
	chainFile      = "chain.pem"
	outcomeLogFile = "renewals.log"
)

// Material is the PEM-encoded output of an issuance, handed to the store for
// an atomic write. Chain may be empty; it is then derived from the fullchain.
type Material struct {
	Fullchain  []byte
	PrivateKey []byte
	Chain      []byte
}

// Store reads and writes certificate material under a root directory,
// one subdirectory per domain.
type Store struct {
	root string
}

// New creates a certificate store rooted at dir.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: certificate directory is required", ErrStoreFailed)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: create certificate directory: %w", ErrStoreFailed, err)
	}
	return &Store{root: dir}, nil
}

// Dir returns the store root directory.
func (s *Store) Dir() string {
	return s.root
}

// Paths returns the absolute artifact paths for a domain, whether or not
// material exists yet. The proxy configuration references these locations.
func (s *Store) Paths(domain string) (fullchain, privkey, chain string) {
	dir := s.domainDir(domain)
	return filepath.Join(dir, fullchainFile),
		filepath.Join(dir, privateKeyFile),
		filepath.Join(dir, chainFile)
}

// OutcomeLogPath returns the path of the domain's renewal outcome journal.
func (s *Store) OutcomeLogPath(domain string) string {
	return filepath.Join(s.domainDir(domain), outcomeLogFile)
}

// Load reads the stored material for a domain and constructs a fresh Record.
// Returns ErrRecordNotFound when no material exists and ErrRecordCorrupt
// when material exists but does not parse as a usable key pair.
func (s *Store) Load(domain string) (*Record, error) {
	fullchainPath, privkeyPath, chainPath := s.Paths(domain)

	fullchain, err := os.ReadFile(fullchainPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, domain)
		}
		return nil, fmt.Errorf("%w: read fullchain for %s: %w", ErrRecordCorrupt, domain, err)
	}

	privkey, err := os.ReadFile(privkeyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s has no private key", ErrRecordCorrupt, domain)
		}
		return nil, fmt.Errorf("%w: read private key for %s: %w", ErrRecordCorrupt, domain, err)
	}

	// X509KeyPair verifies both that the PEM parses and that the key
	// actually belongs to the certificate.
	if _, err := tls.X509KeyPair(fullchain, privkey); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRecordCorrupt, domain, err)
	}

	leaf, err := parseLeaf(fullchain)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRecordCorrupt, domain, err)
	}

	return &Record{
		Domain:         domain,
		FullchainPath:  fullchainPath,
		PrivateKeyPath: privkeyPath,
		ChainPath:      chainPath,
		Issuer:         classifyIssuer(leaf),
		NotBefore:      leaf.NotBefore,
		NotAfter:       leaf.NotAfter,
		leaf:           leaf,
	}, nil
}

// Save atomically replaces the stored material for a domain and returns the
// new Record. Each artifact is written to a temporary path and renamed over
// the target, so readers never observe a partial write. On any failure the
// previous material is retained.
func (s *Store) Save(domain string, mat Material) (*Record, error) {
	if len(mat.Fullchain) == 0 || len(mat.PrivateKey) == 0 {
		return nil, fmt.Errorf("%w: domain %s", ErrEmptyMaterial, domain)
	}

	leaf, err := parseLeaf(mat.Fullchain)
	if err != nil {
		return nil, fmt.Errorf("%w: refusing to store unparsable material for %s: %w", ErrStoreFailed, domain, err)
	}

	chain := mat.Chain
	if len(chain) == 0 {
		chain = chainFromFullchain(mat.Fullchain)
	}

	dir := s.domainDir(domain)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: create domain directory: %w", ErrStoreFailed, err)
	}

	fullchainPath, privkeyPath, chainPath := s.Paths(domain)

	// The private key lands first so the fullchain (the file the proxy keys
	// its reload on) is always the last artifact to change.
	if err := atomicWrite(privkeyPath, mat.PrivateKey, 0o600); err != nil {
		return nil, fmt.Errorf("%w: write private key: %w", ErrStoreFailed, err)
	}
	if err := atomicWrite(chainPath, chain, 0o644); err != nil {
		return nil, fmt.Errorf("%w: write chain: %w", ErrStoreFailed, err)
	}
	if err := atomicWrite(fullchainPath, mat.Fullchain, 0o644); err != nil {
		return nil, fmt.Errorf("%w: write fullchain: %w", ErrStoreFailed, err)
	}

	return &Record{
		Domain:         domain,
		FullchainPath:  fullchainPath,
		PrivateKeyPath: privkeyPath,
		ChainPath:      chainPath,
		Issuer:         classifyIssuer(leaf),
		NotBefore:      leaf.NotBefore,
		NotAfter:       leaf.NotAfter,
		leaf:           leaf,
	}, nil
}

// Exists reports whether any certificate material is stored for the domain.
func (s *Store) Exists(domain string) bool {
	fullchainPath, _, _ := s.Paths(domain)
	_, err := os.Stat(fullchainPath)
	return err == nil
}

// AppendOutcomeLog appends one line to the domain's renewal journal.
// The journal is observability-only; decisions are always re-derived from
// the certificate material itself.
func (s *Store) AppendOutcomeLog(domain string, line []byte) error {
	if err := os.MkdirAll(s.domainDir(domain), 0o700); err != nil {
		return fmt.Errorf("%w: create domain directory: %w", ErrStoreFailed, err)
	}

	f, err := os.OpenFile(s.OutcomeLogPath(domain), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("%w: open outcome log: %w", ErrStoreFailed, err)
	}
	defer func() { _ = f.Close() }()

	if len(line) == 0 || line[len(line)-1] != '\n' {
		line = append(line, '\n')
	}
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("%w: append outcome log: %w", ErrStoreFailed, err)
	}
	return nil
}

func (s *Store) domainDir(domain string) string {
	return filepath.Join(s.root, domain)
}

// atomicWrite writes data to a temporary file next to path and renames it
// over the target.
func atomicWrite(path string, data []byte, perm os.FileMode) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, perm); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath) // Best effort cleanup
		return err
	}
	return nil
}

// parseLeaf decodes the first PEM block of a fullchain as the leaf certificate.
func parseLeaf(fullchain []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(fullchain)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("no certificate PEM block found")
	}
	return x509.ParseCertificate(block.Bytes)
}

// chainFromFullchain returns everything after the leaf certificate. For a
// self-signed certificate there are no intermediates, so the leaf itself is
// used to keep the chain file present and non-empty.
func chainFromFullchain(fullchain []byte) []byte {
	_, rest := pem.Decode(fullchain)
	if len(pemBlocks(rest)) > 0 {
		return rest
	}
	return fullchain
}

func pemBlocks(data []byte) [][]byte {
	var blocks [][]byte
	for {
		block, rest := pem.Decode(data)
		if block == nil {
			return blocks
		}
		blocks = append(blocks, block.Bytes)
		data = rest
	}
}
