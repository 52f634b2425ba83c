package mint

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"

	"github.com/splitsecure/go-webauthn-rp/authenticatordata"
)

type AssertionInput struct {
	PrivateKey *ecdsa.PrivateKey
	RPID       string
	SignCount  uint32

	// ClientDataJSON is the exact client data the assertion covers; build it
	// with ClientDataJSON.
	ClientDataJSON []byte

	// Flags defaults to user-present and user-verified when zero.
	Flags authenticatordata.Flags
}

type AssertionOutput struct {
	AuthenticatorData []byte
	Signature         []byte
}

// MintAssertion signs authenticatorData‖SHA-256(clientDataJSON) the way an
// ES256 authenticator does.
func MintAssertion(in *AssertionInput) (AssertionOutput, error) {
	flags := in.Flags
	if flags == 0 {
		flags = authenticatordata.FlagUserPresent | authenticatordata.FlagUserVerified
	}

	rpHash := sha256.Sum256([]byte(in.RPID))
	ad := authenticatordata.T{
		RelyingPartyHash: rpHash[:],
		Flags:            flags,
		SignCount:        in.SignCount,
	}

	adb, err := authenticatordata.Marshal(&ad)
	if err != nil {
		return AssertionOutput{}, err
	}

	clientDataHash := sha256.Sum256(in.ClientDataJSON)

	digester := sha256.New()
	digester.Write(adb)
	digester.Write(clientDataHash[:])
	digest := digester.Sum(nil)

	sig, err := ecdsa.SignASN1(rand.Reader, in.PrivateKey, digest)
	if err != nil {
		return AssertionOutput{}, err
	}

	return AssertionOutput{
		AuthenticatorData: adb,
		Signature:         sig,
	}, nil
}
