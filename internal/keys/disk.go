package keys

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sanasol-ws/dualauth/internal/clock"
	"github.com/sanasol-ws/dualauth/internal/fs"
)

// DiskKeyStore is a Store that persists its Ed25519 keypair as a JSON file.
// The key is loaded (or generated and persisted) on the first call to any
// accessor and then served from memory for the process lifetime. Keys are
// never rotated within a process.
type DiskKeyStore struct {
	path   string
	fs     fs.FileSystem
	clock  clock.Clock
	logger *slog.Logger

	mu      sync.Mutex
	private ed25519.PrivateKey
	public  ed25519.PublicKey
	keyID   string
}

// DiskKeyStoreConfig configures the disk key store
type DiskKeyStoreConfig struct {
	// Path is the file where the signing key record lives
	Path string

	// FileSystem is an optional filesystem abstraction (defaults to OSFileSystem)
	FileSystem fs.FileSystem

	// Clock is an optional time source (defaults to system clock)
	Clock clock.Clock

	// Logger is the structured logger to use. If nil, uses slog.Default()
	Logger *slog.Logger
}

// keyFileData is the JSON record stored on disk
type keyFileData struct {
	ID         string    `json:"id"`
	Algorithm  string    `json:"algorithm"`
	PrivateKey string    `json:"private_key"` // Base64-encoded PKCS#8 DER
	PublicKey  string    `json:"public_key"`  // Base64-encoded PKIX DER
	CreatedAt  time.Time `json:"created_at"`
}

// NewDiskKeyStore creates a new disk-backed key store
func NewDiskKeyStore(cfg DiskKeyStoreConfig) (*DiskKeyStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("signing key path is required")
	}

	filesystem := cfg.FileSystem
	if filesystem == nil {
		filesystem = fs.NewOSFileSystem()
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewSystemClock()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := filesystem.MkdirAll(filepath.Dir(cfg.Path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}

	return &DiskKeyStore{
		path:   cfg.Path,
		fs:     filesystem,
		clock:  clk,
		logger: logger,
	}, nil
}

// PublicKeyRecord implements Store
func (s *DiskKeyStore) PublicKeyRecord(ctx context.Context) (PublicKey, error) {
	if err := s.ensureKey(); err != nil {
		return PublicKey{}, err
	}
	return PublicKey{
		KeyID:     s.keyID,
		Algorithm: AlgorithmEdDSA,
		Key:       s.public,
		Use:       "sig",
	}, nil
}

// Sign implements Store. Ed25519 signs the message directly, no pre-hashing.
func (s *DiskKeyStore) Sign(ctx context.Context, data []byte) ([]byte, error) {
	if err := s.ensureKey(); err != nil {
		return nil, err
	}
	return ed25519.Sign(s.private, data), nil
}

// KeyID implements Store
func (s *DiskKeyStore) KeyID(ctx context.Context) (string, error) {
	if err := s.ensureKey(); err != nil {
		return "", err
	}
	return s.keyID, nil
}

// Algorithm implements Store
func (s *DiskKeyStore) Algorithm() string {
	return AlgorithmEdDSA
}

// ensureKey loads the persisted key record, or generates and persists a new
// keypair when the record is absent or unparseable. A failed persist is
// logged and tolerated: the in-memory key stays usable for this process,
// and the next start regenerates. Availability wins over continuity.
func (s *DiskKeyStore) ensureKey() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.private != nil {
		return nil
	}

	if err := s.loadLocked(); err == nil {
		return nil
	} else if !s.fs.IsNotExist(err) {
		s.logger.Warn("failed to load signing key, generating a new one",
			"path", s.path, "error", err)
	}

	return s.generateLocked()
}

func (s *DiskKeyStore) loadLocked() error {
	raw, err := s.fs.ReadFile(s.path)
	if err != nil {
		return err
	}

	var data keyFileData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("failed to unmarshal key file (corrupted?): %w", err)
	}

	if data.Algorithm != AlgorithmEdDSA {
		return fmt.Errorf("algorithm mismatch: expected %s, found %s", AlgorithmEdDSA, data.Algorithm)
	}
	if data.ID == "" {
		return fmt.Errorf("key file missing key id")
	}

	privateDER, err := base64.StdEncoding.DecodeString(data.PrivateKey)
	if err != nil {
		return fmt.Errorf("failed to decode private key: %w", err)
	}

	privateAny, err := x509.ParsePKCS8PrivateKey(privateDER)
	if err != nil {
		return fmt.Errorf("failed to parse private key: %w", err)
	}

	private, ok := privateAny.(ed25519.PrivateKey)
	if !ok {
		return fmt.Errorf("persisted key is %T, not ed25519", privateAny)
	}

	s.private = private
	s.public = private.Public().(ed25519.PublicKey)
	s.keyID = data.ID
	return nil
}

func (s *DiskKeyStore) generateLocked() error {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate signing key: %w", err)
	}

	keyID := uuid.NewString()

	privateDER, err := x509.MarshalPKCS8PrivateKey(private)
	if err != nil {
		return fmt.Errorf("failed to marshal private key: %w", err)
	}
	publicDER, err := x509.MarshalPKIXPublicKey(public)
	if err != nil {
		return fmt.Errorf("failed to marshal public key: %w", err)
	}

	data := keyFileData{
		ID:         keyID,
		Algorithm:  AlgorithmEdDSA,
		PrivateKey: base64.StdEncoding.EncodeToString(privateDER),
		PublicKey:  base64.StdEncoding.EncodeToString(publicDER),
		CreatedAt:  s.clock.Now().UTC(),
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal key file: %w", err)
	}

	if err := s.fs.WriteFileAtomic(s.path, jsonData, 0600); err != nil {
		// The in-memory key is still usable; a restart regenerates.
		s.logger.Warn("failed to persist signing key, key identity will not survive restart",
			"path", s.path, "error", err)
	}

	s.private = private
	s.public = public
	s.keyID = keyID
	return nil
}
