// Package ballot implements the per-voter, per-proposal ballot state
// machine (spec.md §4.10): nonce bookkeeping, bound public key, and the
// UI-facing last-vote summary, guarded against concurrent mutation and
// persisted as `ballot:<poll>:<voter>` JSON records (spec.md §6).
package ballot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/kysee/maci-voter-core/babyjub"
	"github.com/kysee/maci-voter-core/wire"
)

// ErrConcurrentModification is returned when a caller attempts to
// mutate a record that is already locked by another goroutine. The
// store fails fast (TryLock) rather than queueing, per spec.md §5.
var ErrConcurrentModification = errors.New("ballot: record is concurrently locked")

// ErrVotingClosed is returned by Mutate when a record has already been
// finalized.
var ErrVotingClosed = errors.New("ballot: voting is closed for this record")

// ErrCorruptRecord is returned when a record is found in a state the
// protocol invariants forbid (e.g. a nonce rollback, or a second
// registration attempt).
var ErrCorruptRecord = errors.New("ballot: record failed an invariant check")

// Key identifies a ballot by proposal contract, voter address, and
// poll ID.
type Key struct {
	Proposal common.Address
	Voter    common.Address
	PollID   uint64
}

// backendKey renders the spec.md §6 `ballot:<poll>:<voter>` persistence
// key, qualifying <poll> with the proposal contract since one contract
// can host more than one poll.
func (k Key) backendKey() string {
	return fmt.Sprintf("ballot:%s:%d:%s", k.Proposal.Hex(), k.PollID, k.Voter.Hex())
}

// VoteSummary is the UI-facing record of the most recent vote; it is
// not security-critical.
type VoteSummary struct {
	Choice uint64
	Weight uint64
	Cost   uint64
}

// Record is one voter's ballot state for one proposal/poll.
type Record struct {
	NextNonce      uint64
	BoundPublicKey *babyjub.Point
	// StateIndex is assigned by the external registration log once the
	// voter's SignUp transaction is mined (spec.md §4.10); nil until
	// then. Populated via ApplyStateIndex, never guessed locally.
	StateIndex *uint64
	LastVote   *VoteSummary
	// KeyChangeNonce is a separate UI-display counter; the real
	// protocol nonce used in message signing is always NextNonce
	// (spec.md §4.10's "Nonce duality" design note).
	KeyChangeNonce uint64
	Finalized      bool

	mu sync.Mutex
}

// Backend is the pluggable persistence layer for ballot records,
// mirroring the teacher's Fetcher interface (provers/types/fetcher.go)
// the same way secretstore.Backend does for identity keys.
type Backend interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, value []byte) error
}

// persistedPoint is the wire.FieldElementJSON-encoded form of a
// babyjub.Point, used only in the JSON envelope Store persists.
type persistedPoint struct {
	X wire.FieldElementJSON `json:"x"`
	Y wire.FieldElementJSON `json:"y"`
}

// persistedRecord is the on-disk shape of a Record: spec.md §6's
// `{next_nonce, bound_pk?, state_index?, last_vote?}`.
type persistedRecord struct {
	NextNonce      uint64          `json:"next_nonce"`
	BoundPublicKey *persistedPoint `json:"bound_pk,omitempty"`
	StateIndex     *uint64         `json:"state_index,omitempty"`
	LastVote       *VoteSummary    `json:"last_vote,omitempty"`
	KeyChangeNonce uint64          `json:"key_change_nonce,omitempty"`
	Finalized      bool            `json:"finalized,omitempty"`
}

func (r *Record) toPersisted() persistedRecord {
	p := persistedRecord{
		NextNonce:      r.NextNonce,
		StateIndex:     r.StateIndex,
		LastVote:       r.LastVote,
		KeyChangeNonce: r.KeyChangeNonce,
		Finalized:      r.Finalized,
	}
	if r.BoundPublicKey != nil {
		p.BoundPublicKey = &persistedPoint{
			X: wire.FieldElementJSON{Element: r.BoundPublicKey.X},
			Y: wire.FieldElementJSON{Element: r.BoundPublicKey.Y},
		}
	}
	return p
}

func recordFromPersisted(p persistedRecord) *Record {
	r := &Record{
		NextNonce:      p.NextNonce,
		StateIndex:     p.StateIndex,
		LastVote:       p.LastVote,
		KeyChangeNonce: p.KeyChangeNonce,
		Finalized:      p.Finalized,
	}
	if p.BoundPublicKey != nil {
		r.BoundPublicKey = &babyjub.Point{X: p.BoundPublicKey.X.Element, Y: p.BoundPublicKey.Y.Element}
	}
	return r
}

// Store holds every ballot record this process has touched, keyed by
// (proposal, voter, pollId), backed by a persistence Backend so state
// (most importantly NextNonce) survives across process invocations.
type Store struct {
	mu      sync.Mutex
	backend Backend
	records map[Key]*Record
	log     zerolog.Logger
}

// NewStore returns a Store over backend that logs mutation failures to
// stdout.
func NewStore(backend Backend) *Store {
	return NewStoreWithLogger(backend, zerolog.New(os.Stdout).With().Timestamp().Logger())
}

// NewStoreWithLogger returns a Store over backend using the given
// logger, for callers (and tests) that want mutation failures routed
// elsewhere.
func NewStoreWithLogger(backend Backend, logger zerolog.Logger) *Store {
	return &Store{backend: backend, records: make(map[Key]*Record), log: logger}
}

// Get returns the record for key: the cached in-memory record if one
// has already been touched this process, else whatever Backend has
// persisted, else a fresh record (NextNonce = 1).
func (s *Store) Get(key Key) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[key]; ok {
		return r
	}

	r := s.loadFromBackend(key)
	if r == nil {
		r = &Record{NextNonce: 1}
	}
	s.records[key] = r
	return r
}

func (s *Store) loadFromBackend(key Key) *Record {
	if s.backend == nil {
		return nil
	}
	raw, ok, err := s.backend.Get(key.backendKey())
	if err != nil {
		s.log.Error().Str("key", key.backendKey()).Err(err).Msg("failed to read persisted ballot record")
		return nil
	}
	if !ok {
		return nil
	}
	var p persistedRecord
	if err := json.Unmarshal(raw, &p); err != nil {
		s.log.Error().Str("key", key.backendKey()).Err(err).Msg("persisted ballot record is corrupt")
		return nil
	}
	return recordFromPersisted(p)
}

func (s *Store) persist(key Key, r *Record) error {
	if s.backend == nil {
		return nil
	}
	raw, err := json.Marshal(r.toPersisted())
	if err != nil {
		return fmt.Errorf("ballot: encoding record for %s: %w", key.backendKey(), err)
	}
	if err := s.backend.Put(key.backendKey(), raw); err != nil {
		return fmt.Errorf("ballot: persisting record for %s: %w", key.backendKey(), err)
	}
	return nil
}

// Mutate locks the record for key and runs fn, which may modify the
// record in place and return an error to abort. Returns
// ErrConcurrentModification without blocking if the record is already
// locked, and ErrVotingClosed if the record was finalized. On success
// the record is written back through Backend before Mutate returns.
func (s *Store) Mutate(key Key, fn func(r *Record) error) error {
	r := s.Get(key)
	if !r.mu.TryLock() {
		s.log.Warn().Any("key", key).Msg("ballot record is locked by another mutation")
		return ErrConcurrentModification
	}
	defer r.mu.Unlock()

	if r.Finalized {
		s.log.Warn().Any("key", key).Msg("attempted mutation of a finalized ballot record")
		return ErrVotingClosed
	}
	if err := fn(r); err != nil {
		s.log.Error().Any("key", key).Err(err).Msg("ballot mutation failed")
		return err
	}
	if err := s.persist(key, r); err != nil {
		s.log.Error().Any("key", key).Err(err).Msg("failed to persist ballot record")
		return err
	}
	return nil
}

// ApplyVote advances a record's nonce and bookkeeping after a vote
// message was successfully published (spec.md §4.10's invariant: the
// nonce increments monotonically and is never rolled back).
func (r *Record) ApplyVote(newNonce uint64, summary VoteSummary) error {
	if newNonce <= r.NextNonce {
		return fmt.Errorf("%w: nonce %d does not advance past %d", ErrCorruptRecord, newNonce, r.NextNonce)
	}
	r.NextNonce = newNonce
	r.LastVote = &summary
	return nil
}

// ApplyKeyChange updates the bound public key after a key-change
// publish succeeds (spec.md §4.10: the binding updates only after
// publish, not at assembly time) and advances the nonce and the
// UI-only key-change counter.
func (r *Record) ApplyKeyChange(newNonce uint64, newPK babyjub.Point) error {
	if newNonce <= r.NextNonce {
		return fmt.Errorf("%w: nonce %d does not advance past %d", ErrCorruptRecord, newNonce, r.NextNonce)
	}
	r.NextNonce = newNonce
	r.BoundPublicKey = &newPK
	r.KeyChangeNonce++
	return nil
}

// ApplyStateIndex records the state index assigned by the external
// registration log once a voter's SignUp transaction is mined. It is
// a one-time assignment: a record that already has a StateIndex has
// already registered, and a second assignment is an invariant
// violation rather than a silent overwrite.
func (r *Record) ApplyStateIndex(stateIndex uint64) error {
	if r.StateIndex != nil {
		return fmt.Errorf("%w: state index already assigned (%d)", ErrCorruptRecord, *r.StateIndex)
	}
	r.StateIndex = &stateIndex
	return nil
}

// Finalize marks the record closed; subsequent Mutate calls fail with
// ErrVotingClosed.
func (r *Record) Finalize() {
	r.Finalized = true
}

// FileBackend implements Backend by reading/writing a single JSON file
// on disk, mirroring the teacher's FileFetcher (provers/file_fetcher.go)
// and secretstore's FileBackend of the same shape.
type FileBackend struct {
	FilePath string
	mu       sync.Mutex
}

// NewFileBackend creates a FileBackend rooted at filePath.
func NewFileBackend(filePath string) *FileBackend {
	return &FileBackend{FilePath: filePath}
}

func (f *FileBackend) readAll() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(f.FilePath)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", f.FilePath, err)
	}
	m := map[string]json.RawMessage{}
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
		return fmt.Errorf("ballot: encoding file backend: %w", err)
	}
	if err := os.WriteFile(f.FilePath, data, 0o600); err != nil {
		return fmt.Errorf("ballot: writing file %s: %w", f.FilePath, err)
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
