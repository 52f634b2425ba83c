package webauthn

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Challenge is a single-use random value tied to one subject. It is created
// by the relying party at ceremony start, persisted by the challenge store
// and mutated only by the store's atomic consume.
type Challenge struct {
	Value     []byte
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Credential is the stored state of a registered credential. After
// registration only SignCount changes, and only through the store's
// compare-and-swap.
type Credential struct {
	ID        []byte
	UserID    string
	PublicKey []byte // raw COSE_Key bytes, opaque until handed to cosekey
	SignCount uint32
	AAGUID    uuid.UUID
}

// VerificationOutcome reports the result of an authentication ceremony.
type VerificationOutcome struct {
	Verified  bool
	SignCount uint32
	Reason    ReasonCode
	// CloneWarning is set when the sign counter did not advance but policy
	// accepted the assertion anyway (WithCloneWarningOnly).
	CloneWarning bool
}

// Store failure sentinels. Implementations return these so the relying party
// can map them onto the ceremony reason taxonomy.
var (
	ErrCredentialNotFound = errors.New("webauthn: credential not found")
	ErrChallengeNotFound  = errors.New("webauthn: challenge not found")
	ErrChallengeConsumed  = errors.New("webauthn: challenge already consumed")
	ErrChallengeExpired   = errors.New("webauthn: challenge expired")
	ErrChallengeMismatch  = errors.New("webauthn: challenge subject mismatch")
)

// CredentialStore is the durable credential collaborator. Implementations
// must make CompareAndSwapSignCount a single atomic transaction keyed by
// credential ID: two concurrent assertions for one credential must not both
// observe the old counter and both succeed.
type CredentialStore interface {
	// Get returns the credential or ErrCredentialNotFound.
	Get(credentialID []byte) (*Credential, error)
	// GetByOwner lists the credentials registered to a user.
	GetByOwner(userID string) ([]Credential, error)
	// Put inserts the credential. If a credential with the same ID already
	// exists the stored record is returned unchanged with inserted=false;
	// existing records are never overwritten.
	Put(cred Credential) (stored Credential, inserted bool, err error)
	// CompareAndSwapSignCount atomically replaces the counter if it still
	// equals old. A false return means another writer got there first.
	CompareAndSwapSignCount(credentialID []byte, old, new uint32) (bool, error)
}

// ChallengeStore is the challenge collaborator. Consume must atomically mark
// the challenge used, and fail with ErrChallengeNotFound, ErrChallengeConsumed,
// ErrChallengeExpired or ErrChallengeMismatch. Expiry is enforced here at
// consume time, not by a background sweep.
type ChallengeStore interface {
	Save(ch Challenge) error
	Consume(userID string, value []byte) error
}
