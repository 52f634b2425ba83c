package webauthn

import (
	"crypto/ecdsa"
	"crypto/sha256"
)

// VerifySignature checks an assertion signature. The authenticator signed
// exactly authData followed by the SHA-256 digest of the raw client data
// JSON; callers must pass the raw bytes received on the wire, never a
// re-serialization of a parsed structure.
//
// The signature is ASN.1 DER as produced by CTAP authenticators for ES256.
// A malformed encoding is an ordinary false, not an error: an invalid
// signature is an expected outcome.
func VerifySignature(pub *ecdsa.PublicKey, authData []byte, clientDataHash [sha256.Size]byte, sig []byte) bool {
	digester := sha256.New()
	digester.Write(authData)
	digester.Write(clientDataHash[:])

	digest := [sha256.Size]byte{}
	digester.Sum(digest[:0])

	return ecdsa.VerifyASN1(pub, digest[:], sig)
}
