package memstore_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/splitsecure/go-webauthn-rp/memstore"
	"github.com/splitsecure/go-webauthn-rp/webauthn"
)

func TestPutIsInsertOnly(t *testing.T) {
	s := memstore.New()

	first := webauthn.Credential{ID: []byte{1}, UserID: "alice", SignCount: 3}
	stored, inserted, err := s.Put(first)
	require.NoError(t, err)
	require.True(t, inserted)
	require.Equal(t, first, stored)

	stored, inserted, err = s.Put(webauthn.Credential{ID: []byte{1}, UserID: "bob", SignCount: 0})
	require.NoError(t, err)
	require.False(t, inserted)
	require.Equal(t, first, stored)
}

func TestGetByOwner(t *testing.T) {
	s := memstore.New()
	_, _, err := s.Put(webauthn.Credential{ID: []byte{1}, UserID: "alice"})
	require.NoError(t, err)
	_, _, err = s.Put(webauthn.Credential{ID: []byte{2}, UserID: "alice"})
	require.NoError(t, err)
	_, _, err = s.Put(webauthn.Credential{ID: []byte{3}, UserID: "bob"})
	require.NoError(t, err)

	creds, err := s.GetByOwner("alice")
	require.NoError(t, err)
	require.Len(t, creds, 2)

	creds, err = s.GetByOwner("nobody")
	require.NoError(t, err)
	require.Empty(t, creds)
}

func TestCompareAndSwapSignCount(t *testing.T) {
	s := memstore.New()
	_, _, err := s.Put(webauthn.Credential{ID: []byte{1}, UserID: "alice", SignCount: 5})
	require.NoError(t, err)

	swapped, err := s.CompareAndSwapSignCount([]byte{1}, 5, 6)
	require.NoError(t, err)
	require.True(t, swapped)

	// stale expectation loses
	swapped, err = s.CompareAndSwapSignCount([]byte{1}, 5, 7)
	require.NoError(t, err)
	require.False(t, swapped)

	cred, err := s.Get([]byte{1})
	require.NoError(t, err)
	require.Equal(t, uint32(6), cred.SignCount)

	_, err = s.CompareAndSwapSignCount([]byte{9}, 0, 1)
	require.ErrorIs(t, err, webauthn.ErrCredentialNotFound)
}

// TestCompareAndSwapSignCountConcurrent drives the correctness-critical race:
// of N concurrent swaps expecting the same old value, exactly one may win.
func TestCompareAndSwapSignCountConcurrent(t *testing.T) {
	s := memstore.New()
	_, _, err := s.Put(webauthn.Credential{ID: []byte{1}, UserID: "alice", SignCount: 10})
	require.NoError(t, err)

	const workers = 32
	var wg sync.WaitGroup
	wins := make(chan uint32, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(newCount uint32) {
			defer wg.Done()
			swapped, err := s.CompareAndSwapSignCount([]byte{1}, 10, newCount)
			if err == nil && swapped {
				wins <- newCount
			}
		}(uint32(11 + i))
	}
	wg.Wait()
	close(wins)

	var winners []uint32
	for w := range wins {
		winners = append(winners, w)
	}
	require.Len(t, winners, 1)

	cred, err := s.Get([]byte{1})
	require.NoError(t, err)
	require.Equal(t, winners[0], cred.SignCount)
}

func TestChallengeConsumeOnce(t *testing.T) {
	s := memstore.New()
	ch := webauthn.Challenge{
		Value:     []byte("c1"),
		UserID:    "alice",
		IssuedAt:  time.Now(),
		ExpiresAt: time.Now().Add(time.Minute),
	}
	require.NoError(t, s.Save(ch))

	require.NoError(t, s.Consume("alice", []byte("c1")))
	require.ErrorIs(t, s.Consume("alice", []byte("c1")), webauthn.ErrChallengeConsumed)
}

func TestChallengeConsumeFailures(t *testing.T) {
	s := memstore.New()
	require.NoError(t, s.Save(webauthn.Challenge{
		Value:     []byte("c2"),
		UserID:    "alice",
		IssuedAt:  time.Now().Add(-2 * time.Minute),
		ExpiresAt: time.Now().Add(-time.Minute),
	}))

	require.ErrorIs(t, s.Consume("alice", []byte("unknown")), webauthn.ErrChallengeNotFound)
	require.ErrorIs(t, s.Consume("bob", []byte("c2")), webauthn.ErrChallengeMismatch)
	require.ErrorIs(t, s.Consume("alice", []byte("c2")), webauthn.ErrChallengeExpired)
}
