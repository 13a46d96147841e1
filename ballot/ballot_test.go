package ballot

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kysee/maci-voter-core/babyjub"
	"github.com/stretchr/testify/require"
)

func testKey() Key {
	return Key{
		Proposal: common.HexToAddress("0x1"),
		Voter:    common.HexToAddress("0x2"),
		PollID:   1,
	}
}

func TestGetCreatesFreshRecordWithNonceOne(t *testing.T) {
	s := NewStore(NewMemBackend())
	r := s.Get(testKey())
	require.Equal(t, uint64(1), r.NextNonce)
	require.False(t, r.Finalized)
}

func TestApplyVoteAdvancesNonce(t *testing.T) {
	s := NewStore(NewMemBackend())
	key := testKey()
	err := s.Mutate(key, func(r *Record) error {
		return r.ApplyVote(2, VoteSummary{Choice: 1, Weight: 3, Cost: 9})
	})
	require.NoError(t, err)
	r := s.Get(key)
	require.Equal(t, uint64(2), r.NextNonce)
	require.Equal(t, uint64(9), r.LastVote.Cost)
}

func TestApplyVoteRejectsNonceRollback(t *testing.T) {
	s := NewStore(NewMemBackend())
	key := testKey()
	require.NoError(t, s.Mutate(key, func(r *Record) error {
		return r.ApplyVote(5, VoteSummary{})
	}))
	err := s.Mutate(key, func(r *Record) error {
		return r.ApplyVote(3, VoteSummary{})
	})
	require.ErrorIs(t, err, ErrCorruptRecord)
}

func TestMutateRejectsFinalizedRecord(t *testing.T) {
	s := NewStore(NewMemBackend())
	key := testKey()
	r := s.Get(key)
	r.Finalize()

	err := s.Mutate(key, func(r *Record) error {
		return r.ApplyVote(2, VoteSummary{})
	})
	require.ErrorIs(t, err, ErrVotingClosed)
}

func TestApplyKeyChangeUpdatesBoundKeyAndCounter(t *testing.T) {
	s := NewStore(NewMemBackend())
	key := testKey()
	newPK := babyjub.G()

	err := s.Mutate(key, func(r *Record) error {
		return r.ApplyKeyChange(2, newPK)
	})
	require.NoError(t, err)

	r := s.Get(key)
	require.Equal(t, uint64(1), r.KeyChangeNonce)
	require.NotNil(t, r.BoundPublicKey)
	require.True(t, babyjub.Equal(*r.BoundPublicKey, newPK))
}

func TestApplyStateIndexIsOneShot(t *testing.T) {
	s := NewStore(NewMemBackend())
	key := testKey()

	require.NoError(t, s.Mutate(key, func(r *Record) error {
		return r.ApplyStateIndex(7)
	}))
	r := s.Get(key)
	require.NotNil(t, r.StateIndex)
	require.Equal(t, uint64(7), *r.StateIndex)

	err := s.Mutate(key, func(r *Record) error {
		return r.ApplyStateIndex(8)
	})
	require.ErrorIs(t, err, ErrCorruptRecord)
}

func TestMutateFailsFastOnContention(t *testing.T) {
	s := NewStore(NewMemBackend())
	key := testKey()
	r := s.Get(key)

	require.True(t, r.mu.TryLock())
	defer r.mu.Unlock()

	err := s.Mutate(key, func(r *Record) error {
		return nil
	})
	require.ErrorIs(t, err, ErrConcurrentModification)
}

func TestConcurrentMutateIsSafe(t *testing.T) {
	s := NewStore(NewMemBackend())
	key := testKey()

	var wg sync.WaitGroup
	successes := make(chan struct{}, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n uint64) {
			defer wg.Done()
			_ = s.Mutate(key, func(r *Record) error {
				return r.ApplyVote(r.NextNonce+1, VoteSummary{})
			})
			successes <- struct{}{}
		}(uint64(i))
	}
	wg.Wait()
	close(successes)
	count := 0
	for range successes {
		count++
	}
	require.Equal(t, 20, count)
}

func TestRecordSurvivesAcrossStoreInstances(t *testing.T) {
	backend := NewMemBackend()
	key := testKey()

	s1 := NewStore(backend)
	require.NoError(t, s1.Mutate(key, func(r *Record) error {
		return r.ApplyVote(4, VoteSummary{Choice: 2, Weight: 1, Cost: 1})
	}))

	s2 := NewStore(backend)
	r := s2.Get(key)
	require.Equal(t, uint64(4), r.NextNonce)
	require.NotNil(t, r.LastVote)
	require.Equal(t, uint64(2), r.LastVote.Choice)
}

func TestRecordSurvivesAcrossFileBackendInstances(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ballots.json")
	key := testKey()
	newPK := babyjub.G()

	s1 := NewStore(NewFileBackend(path))
	require.NoError(t, s1.Mutate(key, func(r *Record) error {
		return r.ApplyKeyChange(3, newPK)
	}))

	s2 := NewStore(NewFileBackend(path))
	r := s2.Get(key)
	require.Equal(t, uint64(3), r.NextNonce)
	require.NotNil(t, r.BoundPublicKey)
	require.True(t, babyjub.Equal(*r.BoundPublicKey, newPK))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
