// Package webauthn implements the relying-party side of the WebAuthn
// registration and authentication ceremonies: challenge issuance, response
// validation, signature verification and credential state updates.
//
// Attestation statements are treated under a "none" trust policy; certificate
// chain validation is out of scope.
package webauthn

import (
	"crypto/rand"
	"crypto/sha256"
	"log/slog"
	"time"

	"github.com/pkg/errors"
)

const (
	// challengeLen is the entropy of an issued challenge. WebAuthn requires
	// at least 16 bytes; 32 are used.
	challengeLen = 32

	defaultChallengeTTL = 5 * time.Minute
)

// Client data types pinned per ceremony.
const (
	clientDataTypeCreate = "webauthn.create"
	clientDataTypeGet    = "webauthn.get"
)

// RelyingParty verifies WebAuthn ceremonies for one relying party ID. It is
// immutable after New and safe for concurrent use; all mutable state lives in
// the injected stores.
type RelyingParty struct {
	id     string
	idHash [sha256.Size]byte

	allowedOrigins           map[string]struct{}
	userVerificationRequired bool
	cloneWarningOnly         bool
	challengeTTL             time.Duration

	credentials CredentialStore
	challenges  ChallengeStore
	logger      *slog.Logger
}

type optionsState struct {
	userVerificationRequired bool
	cloneWarningOnly         bool
	challengeTTL             time.Duration
	logger                   *slog.Logger
}

type option struct {
	apply func(*optionsState)
}

func newoption(fn func(*optionsState)) option {
	return option{
		apply: fn,
	}
}

// WithUserVerificationRequired makes the user-verified flag mandatory in both
// ceremonies.
func WithUserVerificationRequired() option {
	return newoption(func(s *optionsState) {
		s.userVerificationRequired = true
	})
}

// WithCloneWarningOnly downgrades a non-advancing sign counter from a hard
// reject to an accepted assertion carrying CloneWarning.
func WithCloneWarningOnly() option {
	return newoption(func(s *optionsState) {
		s.cloneWarningOnly = true
	})
}

// WithChallengeTTL overrides the default five minute challenge lifetime.
func WithChallengeTTL(ttl time.Duration) option {
	return newoption(func(s *optionsState) {
		s.challengeTTL = ttl
	})
}

// WithLogger sets the logger used for rejected ceremonies.
func WithLogger(logger *slog.Logger) option {
	return newoption(func(s *optionsState) {
		s.logger = logger
	})
}

// New builds a RelyingParty for the given RP ID (the effective domain, e.g.
// "example.com"). allowedOrigins are the exact origins the browser is
// expected to report, e.g. "https://example.com".
func New(
	id string,
	allowedOrigins []string,
	credentials CredentialStore,
	challenges ChallengeStore,
	options ...option,
) (*RelyingParty, error) {
	if id == "" {
		return nil, errors.New("relying party id must not be empty")
	}
	if len(allowedOrigins) == 0 {
		return nil, errors.New("at least one allowed origin is required")
	}
	if credentials == nil || challenges == nil {
		return nil, errors.New("credential and challenge stores are required")
	}

	optionsState := optionsState{
		challengeTTL: defaultChallengeTTL,
		logger:       slog.Default(),
	}
	for _, option := range options {
		option.apply(&optionsState)
	}

	rp := &RelyingParty{
		id:                       id,
		idHash:                   sha256.Sum256([]byte(id)),
		allowedOrigins:           make(map[string]struct{}, len(allowedOrigins)),
		userVerificationRequired: optionsState.userVerificationRequired,
		cloneWarningOnly:         optionsState.cloneWarningOnly,
		challengeTTL:             optionsState.challengeTTL,
		credentials:              credentials,
		challenges:               challenges,
		logger:                   optionsState.logger,
	}
	for _, origin := range allowedOrigins {
		rp.allowedOrigins[origin] = struct{}{}
	}
	return rp, nil
}

// ID returns the relying party identifier.
func (rp *RelyingParty) ID() string { return rp.id }

// Credentials lists the credentials registered to a user, e.g. to populate
// allowCredentials when building a request for the browser.
func (rp *RelyingParty) Credentials(userID string) ([]Credential, error) {
	return rp.credentials.GetByOwner(userID)
}

// issueChallenge creates and persists a fresh challenge for the subject.
// userID may be empty for an authentication ceremony started without a known
// user (allowCredentials empty).
func (rp *RelyingParty) issueChallenge(userID string) (Challenge, error) {
	value := make([]byte, challengeLen)
	if _, err := rand.Read(value); err != nil {
		return Challenge{}, errors.Wrap(err, "generating challenge")
	}

	now := time.Now()
	ch := Challenge{
		Value:     value,
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: now.Add(rp.challengeTTL),
	}
	if err := rp.challenges.Save(ch); err != nil {
		return Challenge{}, errors.Wrap(err, "saving challenge")
	}
	return ch, nil
}

// consumeChallenge maps store failures onto the ceremony taxonomy.
func (rp *RelyingParty) consumeChallenge(userID string, value []byte) *CeremonyError {
	err := rp.challenges.Consume(userID, value)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrChallengeNotFound):
		return rejectErr(ReasonChallengeMismatch, err, "challenge was never issued")
	case errors.Is(err, ErrChallengeMismatch):
		return rejectErr(ReasonChallengeMismatch, err, "challenge issued to another subject")
	case errors.Is(err, ErrChallengeConsumed), errors.Is(err, ErrChallengeExpired):
		return rejectErr(ReasonChallengeExpiredOrConsumed, err, "challenge no longer usable")
	default:
		return rejectErr(ReasonInternal, err, "challenge store failure")
	}
}

func (rp *RelyingParty) logRejection(ceremony, userID string, err *CeremonyError) {
	rp.logger.Warn("ceremony rejected",
		"ceremony", ceremony,
		"user", userID,
		"reason", string(err.Reason),
	)
}
