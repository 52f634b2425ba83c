package webauthn

import (
	"bytes"
	"crypto/sha256"

	"github.com/splitsecure/go-webauthn-rp/authenticatordata"
	"github.com/splitsecure/go-webauthn-rp/cosekey"
)

// AssertionInput carries one authentication response. AuthenticatorData,
// ClientDataJSON and Signature are the raw bytes received on the wire; the
// exact AuthenticatorData bytes are what the device signed, so they are never
// re-encoded here.
type AssertionInput struct {
	// UserID is the subject the challenge was issued to. Empty when the
	// ceremony started without a known user.
	UserID       string
	CredentialID []byte

	AuthenticatorData []byte
	ClientDataJSON    []byte
	Signature         []byte

	// UserHandle is the optional user handle reported by the authenticator.
	UserHandle []byte
}

// BeginAuthentication issues a challenge. userID may be empty: the ceremony
// does not need to know up front which credential will answer
// (allowCredentials may be empty).
func (rp *RelyingParty) BeginAuthentication(userID string) (Challenge, error) {
	return rp.issueChallenge(userID)
}

// FinishAuthentication validates an assertion response and, on success,
// persists the advanced sign counter. The outcome always carries a reason
// code on rejection; the returned error is the same rejection for callers
// that prefer errors.Is / errors.As plumbing.
func (rp *RelyingParty) FinishAuthentication(in *AssertionInput) (VerificationOutcome, error) {
	outcome, err := rp.finishAuthentication(in)
	if err != nil {
		rp.logRejection("authentication", in.UserID, err)
		return VerificationOutcome{Verified: false, Reason: err.Reason}, err
	}
	return outcome, nil
}

func (rp *RelyingParty) finishAuthentication(in *AssertionInput) (VerificationOutcome, *CeremonyError) {
	// cheap policy checks first, signature work last
	challenge, cerr := rp.checkClientData(in.ClientDataJSON, clientDataTypeGet)
	if cerr != nil {
		return VerificationOutcome{}, cerr
	}

	ad := authenticatordata.T{}
	if err := authenticatordata.UnmarshalAssertion(in.AuthenticatorData, &ad); err != nil {
		return VerificationOutcome{}, rejectErr(ReasonParseError, err, "unmarshalling authenticator data")
	}
	if cerr := rp.checkAuthenticatorData(&ad); cerr != nil {
		return VerificationOutcome{}, cerr
	}

	cred, err := rp.credentials.Get(in.CredentialID)
	if err != nil {
		return VerificationOutcome{}, rejectErr(ReasonCredentialNotFound, err, "looking up credential")
	}
	if in.UserID != "" && cred.UserID != in.UserID {
		return VerificationOutcome{}, reject(ReasonCredentialNotFound, "credential not owned by subject")
	}
	if len(in.UserHandle) != 0 && !bytes.Equal(in.UserHandle, []byte(cred.UserID)) {
		return VerificationOutcome{}, reject(ReasonCredentialNotFound, "user handle does not match credential owner")
	}

	if cerr := rp.consumeChallenge(in.UserID, challenge); cerr != nil {
		return VerificationOutcome{}, cerr
	}

	pub, err := cosekey.Decode(cred.PublicKey)
	if err != nil {
		// stored key bytes no longer decode: surfaced for investigation
		return VerificationOutcome{}, rejectErr(ReasonKeyError, err, "stored credential key is unusable")
	}

	clientDataHash := sha256.Sum256(in.ClientDataJSON)
	if !VerifySignature(pub, in.AuthenticatorData, clientDataHash, in.Signature) {
		return VerificationOutcome{}, reject(ReasonSignatureInvalid, "assertion signature did not verify")
	}

	return rp.updateSignCount(cred, ad.SignCount)
}

// updateSignCount applies the counter monotonicity policy after a valid
// signature. A counter that fails to advance past a nonzero stored value is
// the cloning signal.
func (rp *RelyingParty) updateSignCount(cred *Credential, reported uint32) (VerificationOutcome, *CeremonyError) {
	if cred.SignCount != 0 && reported <= cred.SignCount {
		if !rp.cloneWarningOnly {
			return VerificationOutcome{}, reject(ReasonPossibleCloning,
				"sign counter did not advance (stored %d, reported %d)", cred.SignCount, reported)
		}
		rp.logger.Warn("possible cloned authenticator",
			"user", cred.UserID,
			"stored", cred.SignCount,
			"reported", reported,
		)
		return VerificationOutcome{Verified: true, SignCount: cred.SignCount, CloneWarning: true}, nil
	}

	// authenticators without a counter report zero forever
	if reported == cred.SignCount {
		return VerificationOutcome{Verified: true, SignCount: cred.SignCount}, nil
	}

	swapped, err := rp.credentials.CompareAndSwapSignCount(cred.ID, cred.SignCount, reported)
	if err != nil {
		return VerificationOutcome{}, rejectErr(ReasonInternal, err, "persisting sign counter")
	}
	if !swapped {
		// a concurrent assertion already advanced the counter; this one loses
		return VerificationOutcome{}, reject(ReasonPossibleCloning,
			"sign counter raced with a concurrent assertion")
	}
	return VerificationOutcome{Verified: true, SignCount: reported}, nil
}
