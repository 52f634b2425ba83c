// Package authenticatordata parses the WebAuthn authenticator data
// structure according to https://www.w3.org/TR/webauthn/#sctn-authenticator-data
package authenticatordata

import (
	"errors"

	"github.com/google/uuid"
	cose_key "github.com/ldclabs/cose/key"
)

// Flags is the authenticator data flags byte. Bits 1, 3, 4 and 5 are
// reserved and intentionally not validated.
type Flags byte

const (
	FlagUserPresent                   = Flags(1)
	FlagUserVerified                  = Flags(1 << 2)
	FlagAttestedCredentialDataPresent = Flags(1 << 6)
	FlagExtensionDataPresent          = Flags(1 << 7)
)

func (f Flags) UserPresent() bool {
	return f&FlagUserPresent != 0
}

func (f Flags) UserVerified() bool {
	return f&FlagUserVerified != 0
}

func (f Flags) AttestedCredentialDataPresent() bool {
	return f&FlagAttestedCredentialDataPresent != 0
}

func (f Flags) ExtensionDataPresent() bool {
	return f&FlagExtensionDataPresent != 0
}

var (
	// ErrTruncated reports input too short for the fields its flags claim.
	ErrTruncated = errors.New("authenticatordata: truncated input")
	// ErrInvalidLength reports a declared length that is inconsistent with
	// the bytes actually present.
	ErrInvalidLength = errors.New("authenticatordata: invalid declared length")
)

type T struct {
	RelyingPartyHash       []byte
	Flags                  Flags
	SignCount              uint32
	AttestedCredentialData *AttestedCredentialData
	Extensions             []byte
}

type AttestedCredentialData struct {
	AAGUID       uuid.UUID
	CredentialID []byte

	// CredentialPublicKey is the decoded COSE_Key map. RawCredentialPublicKey
	// is the exact byte range it was decoded from, kept so callers can store
	// the key without re-encoding it.
	CredentialPublicKey    cose_key.Key
	RawCredentialPublicKey []byte
}
