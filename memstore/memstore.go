// Package memstore provides in-memory credential and challenge stores with
// the atomic consume and compare-and-swap semantics the webauthn package
// requires. It backs the tests and is suitable for demo servers; anything
// durable belongs in a real database behind the same interfaces.
package memstore

import (
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/splitsecure/go-webauthn-rp/webauthn"
)

type challengeState struct {
	challenge webauthn.Challenge
	consumed  bool
}

// Store implements webauthn.CredentialStore and webauthn.ChallengeStore.
// A single mutex covers both maps; every operation the interfaces require to
// be atomic holds it for the whole check-and-write.
type Store struct {
	mu          sync.Mutex
	credentials map[string]webauthn.Credential
	challenges  map[string]*challengeState

	now func() time.Time
}

func New() *Store {
	return &Store{
		credentials: make(map[string]webauthn.Credential),
		challenges:  make(map[string]*challengeState),
		now:         time.Now,
	}
}

func (s *Store) Get(credentialID []byte) (*webauthn.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.credentials[string(credentialID)]
	if !ok {
		return nil, webauthn.ErrCredentialNotFound
	}
	return &cred, nil
}

func (s *Store) GetByOwner(userID string) ([]webauthn.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return lo.Filter(lo.Values(s.credentials), func(c webauthn.Credential, _ int) bool {
		return c.UserID == userID
	}), nil
}

func (s *Store) Put(cred webauthn.Credential) (webauthn.Credential, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.credentials[string(cred.ID)]; ok {
		return existing, false, nil
	}
	s.credentials[string(cred.ID)] = cred
	return cred, true, nil
}

func (s *Store) CompareAndSwapSignCount(credentialID []byte, old, new uint32) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.credentials[string(credentialID)]
	if !ok {
		return false, webauthn.ErrCredentialNotFound
	}
	if cred.SignCount != old {
		return false, nil
	}
	cred.SignCount = new
	s.credentials[string(credentialID)] = cred
	return true, nil
}

func (s *Store) Save(ch webauthn.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.challenges[string(ch.Value)] = &challengeState{challenge: ch}
	return nil
}

func (s *Store) Consume(userID string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.challenges[string(value)]
	if !ok {
		return webauthn.ErrChallengeNotFound
	}
	if state.challenge.UserID != userID {
		return webauthn.ErrChallengeMismatch
	}
	if state.consumed {
		return webauthn.ErrChallengeConsumed
	}
	if s.now().After(state.challenge.ExpiresAt) {
		// expiry is checked lazily here, there is no sweeper
		return webauthn.ErrChallengeExpired
	}
	state.consumed = true
	return nil
}
