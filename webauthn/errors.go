package webauthn

import "fmt"

// ReasonCode is the machine-readable rejection taxonomy surfaced to callers.
// Messages attached to a CeremonyError never carry key material, signatures
// or the internals of the crypto libraries.
type ReasonCode string

const (
	ReasonParseError                 ReasonCode = "parse_error"
	ReasonKeyError                   ReasonCode = "key_error"
	ReasonClientDataInvalid          ReasonCode = "client_data_invalid"
	ReasonOriginNotAllowed           ReasonCode = "origin_not_allowed"
	ReasonChallengeMismatch          ReasonCode = "challenge_mismatch"
	ReasonChallengeExpiredOrConsumed ReasonCode = "challenge_expired_or_consumed"
	ReasonRelyingPartyMismatch       ReasonCode = "rp_id_mismatch"
	ReasonUserNotPresent             ReasonCode = "user_not_present"
	ReasonUserNotVerified            ReasonCode = "user_not_verified"
	ReasonMissingAttestedCredential  ReasonCode = "missing_attested_credential"
	ReasonCredentialNotFound         ReasonCode = "credential_not_found"
	ReasonSignatureInvalid           ReasonCode = "signature_invalid"
	ReasonPossibleCloning            ReasonCode = "possible_cloning"
	ReasonInternal                   ReasonCode = "internal"
)

// CeremonyError is a terminal rejection of one ceremony instance. Nothing in
// this package retries after one is produced.
type CeremonyError struct {
	Reason ReasonCode
	msg    string
	err    error
}

func (e *CeremonyError) Error() string {
	if e.msg == "" {
		return string(e.Reason)
	}
	return string(e.Reason) + ": " + e.msg
}

func (e *CeremonyError) Unwrap() error { return e.err }

func reject(reason ReasonCode, format string, args ...any) *CeremonyError {
	return &CeremonyError{Reason: reason, msg: fmt.Sprintf(format, args...)}
}

func rejectErr(reason ReasonCode, err error, msg string) *CeremonyError {
	return &CeremonyError{Reason: reason, msg: msg, err: err}
}
