package mint

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/splitsecure/go-webauthn-rp/authenticatordata"
	"github.com/splitsecure/go-webauthn-rp/cosekey"
	"github.com/splitsecure/go-webauthn-rp/webauthn"
)

// This package mints WebAuthn ceremony payloads the way a browser and
// authenticator would produce them. It exists for tests and local demos.

type AttestationInput struct {
	AttestedKey  *ecdsa.PublicKey
	RPID         string
	AAGUID       uuid.UUID
	CredentialID []byte
	SignCount    uint32

	// Flags defaults to user-present, user-verified and attested credential
	// data present when zero.
	Flags authenticatordata.Flags
}

type AttestationOutput struct {
	AttestationObject []byte
	AuthData          []byte
}

// MintAttestation builds a "none" format attestation object over the given
// key.
func MintAttestation(input *AttestationInput) (AttestationOutput, error) {
	coseBytes, err := cosekey.FromPublic(input.AttestedKey)
	if err != nil {
		return AttestationOutput{}, err
	}

	flags := input.Flags
	if flags == 0 {
		flags = authenticatordata.FlagUserPresent |
			authenticatordata.FlagUserVerified |
			authenticatordata.FlagAttestedCredentialDataPresent
	}

	rpHash := sha256.Sum256([]byte(input.RPID))
	ad := authenticatordata.T{
		RelyingPartyHash: rpHash[:],
		Flags:            flags,
		SignCount:        input.SignCount,
		AttestedCredentialData: &authenticatordata.AttestedCredentialData{
			AAGUID:                 input.AAGUID,
			CredentialID:           input.CredentialID,
			RawCredentialPublicKey: coseBytes,
		},
	}

	adb, err := authenticatordata.Marshal(&ad)
	if err != nil {
		return AttestationOutput{}, err
	}

	emptyStatement, err := cbor.Marshal(map[any]any{})
	if err != nil {
		return AttestationOutput{}, err
	}

	aob, err := cbor.Marshal(&webauthn.AttestationObject{
		Format:               "none",
		AttestationStatement: emptyStatement,
		AuthData:             adb,
	})
	if err != nil {
		return AttestationOutput{}, err
	}

	return AttestationOutput{
		AttestationObject: aob,
		AuthData:          adb,
	}, nil
}

// ClientDataJSON builds the collected client data for either ceremony.
// ceremonyType is "webauthn.create" or "webauthn.get".
func ClientDataJSON(ceremonyType string, challenge []byte, origin string) []byte {
	raw, err := json.Marshal(map[string]string{
		"type":      ceremonyType,
		"challenge": base64.RawURLEncoding.EncodeToString(challenge),
		"origin":    origin,
	})
	if err != nil {
		panic(err) // map[string]string cannot fail to marshal
	}
	return raw
}
