// Package secretstore persists voter identity keys at rest, encrypted
// under a key derived from the voter's own wallet address (spec.md
// §4.11: "store(label, secret_bytes, owner_address) / load(label,
// owner_address)" — the address is the only thing this KDF may accept
// as input. This is documented in spec.md itself as preventing casual
// inspection of the file on disk, never a real secret, since an
// address is public. Persistence goes through a pluggable Backend, the
// same "backend behind an interface" shape the teacher uses for its
// Fetcher/FileFetcher pair.
package secretstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/pbkdf2"
)

// ErrCorruptRecord is returned when a stored value cannot be parsed or
// fails authentication under the derived key.
var ErrCorruptRecord = errors.New("secretstore: record is corrupt or the owner address is wrong")

const (
	pbkdf2Iterations = 100_000
	aesKeyLen        = 32
)

// appSalt is a fixed, non-secret application-level salt mixed into key
// derivation so the same address produces different keys across
// unrelated applications; it is not a substitute for secrecy — per
// spec.md §4.11 the address itself is public, so this store only
// prevents casual inspection of the file, never a motivated attacker.
var appSalt = []byte("maci-secrets/v1\x00")

// Backend is the pluggable persistence layer, mirroring the teacher's
// Fetcher interface (provers/types/fetcher.go).
type Backend interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, value []byte) error
}

// Store encrypts values at rest with AES-256-GCM under a key derived
// from each call's owner address.
type Store struct {
	backend Backend
}

// NewStore builds a Store over backend.
func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

func deriveKey(owner common.Address) []byte {
	return pbkdf2.Key(owner.Bytes(), appSalt, pbkdf2Iterations, aesKeyLen, sha256.New)
}

type envelope struct {
	Version int    `json:"version"`
	Nonce   []byte `json:"nonce"`
	Cipher  []byte `json:"cipher"`
}

// Put encrypts value under a key derived from owner and persists it
// under label.
func (s *Store) Put(label string, value []byte, owner common.Address) error {
	block, err := aes.NewCipher(deriveKey(owner))
	if err != nil {
		return fmt.Errorf("secretstore: building cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("secretstore: building AEAD: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("secretstore: drawing nonce: %w", err)
	}
	ct := gcm.Seal(nil, nonce, value, nil)

	raw, err := json.Marshal(envelope{Version: 1, Nonce: nonce, Cipher: ct})
	if err != nil {
		return fmt.Errorf("secretstore: encoding envelope: %w", err)
	}
	if err := s.backend.Put(label, raw); err != nil {
		return fmt.Errorf("secretstore: writing %s: %w", label, err)
	}
	return nil
}

// Load decrypts and returns the value stored under label, using the
// key derived from owner. Legacy records written before encryption was
// introduced (bare plaintext bytes, not a JSON envelope) are
// transparently decrypted-in-place: Load re-encrypts them under the
// current owner-derived key and writes them back before returning.
func (s *Store) Load(label string, owner common.Address) ([]byte, bool, error) {
	raw, ok, err := s.backend.Get(label)
	if err != nil {
		return nil, false, fmt.Errorf("secretstore: reading %s: %w", label, err)
	}
	if !ok {
		return nil, false, nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Version == 0 {
		// Not a JSON envelope: treat as a legacy plaintext value.
		if err := s.Put(label, raw, owner); err != nil {
			return nil, false, fmt.Errorf("secretstore: re-encrypting legacy record %s: %w", label, err)
		}
		return raw, true, nil
	}

	block, err := aes.NewCipher(deriveKey(owner))
	if err != nil {
		return nil, false, fmt.Errorf("secretstore: building cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, false, fmt.Errorf("secretstore: building AEAD: %w", err)
	}
	pt, err := gcm.Open(nil, env.Nonce, env.Cipher, nil)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s", ErrCorruptRecord, label)
	}
	return pt, true, nil
}

// FileBackend implements Backend by reading/writing a single JSON file
// on disk, mirroring the teacher's FileFetcher (provers/file_fetcher.go).
type FileBackend struct {
	FilePath string
	mu       sync.Mutex
}

// NewFileBackend creates a FileBackend rooted at filePath.
func NewFileBackend(filePath string) *FileBackend {
	return &FileBackend{FilePath: filePath}
}

func (f *FileBackend) readAll() (map[string][]byte, error) {
	data, err := os.ReadFile(f.FilePath)
	if errors.Is(err, os.ErrNotExist) {
		return map[string][]byte{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", f.FilePath, err)
	}
	m := map[string][]byte{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	}
	return m, nil
}

// Get reads the value stored under key, if any.
func (f *FileBackend) Get(key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.readAll()
	if err != nil {
		return nil, false, err
	}
	v, ok := m[key]
	return v, ok, nil
}

// Put writes value under key, serializing with any other writer.
func (f *FileBackend) Put(key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.readAll()
	if err != nil {
		return err
	}
	m[key] = value
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("secretstore: encoding file backend: %w", err)
	}
	if err := os.WriteFile(f.FilePath, data, 0o600); err != nil {
		return fmt.Errorf("secretstore: writing file %s: %w", f.FilePath, err)
	}
	return nil
}

// MemBackend is an in-memory Backend for tests.
type MemBackend struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemBackend returns an empty MemBackend.
func NewMemBackend() *MemBackend {
	return &MemBackend{data: map[string][]byte{}}
}

// Get returns the value stored under key, if any.
func (m *MemBackend) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

// Put writes value under key.
func (m *MemBackend) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}
