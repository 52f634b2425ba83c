package webauthn

import (
	"bytes"

	"github.com/fxamacker/cbor/v2"

	"github.com/splitsecure/go-webauthn-rp/authenticatordata"
	"github.com/splitsecure/go-webauthn-rp/cosekey"
)

// AttestationObject is the outer CBOR envelope of a registration response.
//
// https://www.w3.org/TR/webauthn/#sctn-attestation
type AttestationObject struct {
	Format               string          `cbor:"fmt"`
	AttestationStatement cbor.RawMessage `cbor:"attStmt"`
	AuthData             []byte          `cbor:"authData"`
}

// BeginRegistration issues and persists a fresh challenge for the subject.
func (rp *RelyingParty) BeginRegistration(userID string) (Challenge, error) {
	return rp.issueChallenge(userID)
}

// FinishRegistration validates the attestation payload and persists a new
// credential. The attestation statement itself is not trusted or verified
// ("none" policy); the authenticator data and client data are.
//
// Client retries are tolerated: a credential ID that is already registered
// yields the stored record, never an overwrite.
func (rp *RelyingParty) FinishRegistration(userID string, attestationObject, clientDataJSON []byte) (Credential, error) {
	cred, err := rp.finishRegistration(userID, attestationObject, clientDataJSON)
	if err != nil {
		rp.logRejection("registration", userID, err)
		return Credential{}, err
	}
	return cred, nil
}

func (rp *RelyingParty) finishRegistration(userID string, attestationObject, clientDataJSON []byte) (Credential, *CeremonyError) {
	challenge, cerr := rp.checkClientData(clientDataJSON, clientDataTypeCreate)
	if cerr != nil {
		return Credential{}, cerr
	}
	if cerr := rp.consumeChallenge(userID, challenge); cerr != nil {
		return Credential{}, cerr
	}

	attObj := AttestationObject{}
	if err := cbor.Unmarshal(attestationObject, &attObj); err != nil {
		return Credential{}, rejectErr(ReasonParseError, err, "unmarshalling attestation object")
	}
	if attObj.Format != "none" {
		// chain validation is out of scope, the statement is dropped either way
		rp.logger.Debug("ignoring attestation statement", "format", attObj.Format)
	}

	ad := authenticatordata.T{}
	if err := authenticatordata.Unmarshal(attObj.AuthData, &ad); err != nil {
		return Credential{}, rejectErr(ReasonParseError, err, "unmarshalling authenticator data")
	}

	if !ad.Flags.AttestedCredentialDataPresent() {
		return Credential{}, reject(ReasonMissingAttestedCredential, "attested credential data flag not set")
	}
	if cerr := rp.checkAuthenticatorData(&ad); cerr != nil {
		return Credential{}, cerr
	}

	acd := ad.AttestedCredentialData
	if len(acd.CredentialID) == 0 {
		return Credential{}, reject(ReasonMissingAttestedCredential, "empty credential id")
	}

	// reject corrupt or unsupported keys now rather than at first login
	if _, err := cosekey.DecodeKey(acd.CredentialPublicKey); err != nil {
		return Credential{}, rejectErr(ReasonKeyError, err, "credential public key is unusable")
	}

	stored, inserted, err := rp.credentials.Put(Credential{
		ID:        acd.CredentialID,
		UserID:    userID,
		PublicKey: acd.RawCredentialPublicKey,
		SignCount: ad.SignCount,
		AAGUID:    acd.AAGUID,
	})
	if err != nil {
		return Credential{}, rejectErr(ReasonInternal, err, "storing credential")
	}
	if !inserted {
		// a retried ceremony for the same authenticator is idempotent, but a
		// colliding ID owned by someone else is not a success
		if stored.UserID != userID || !bytes.Equal(stored.PublicKey, acd.RawCredentialPublicKey) {
			return Credential{}, reject(ReasonInternal, "credential id already registered to another subject")
		}
	}
	return stored, nil
}

// checkAuthenticatorData applies the flag and RP ID policy shared by both
// ceremonies.
func (rp *RelyingParty) checkAuthenticatorData(ad *authenticatordata.T) *CeremonyError {
	if !bytes.Equal(ad.RelyingPartyHash, rp.idHash[:]) {
		return reject(ReasonRelyingPartyMismatch, "authenticator data rpIdHash does not match %q", rp.id)
	}
	if !ad.Flags.UserPresent() {
		return reject(ReasonUserNotPresent, "user present flag not set")
	}
	if rp.userVerificationRequired && !ad.Flags.UserVerified() {
		return reject(ReasonUserNotVerified, "user verification required by policy")
	}
	return nil
}
