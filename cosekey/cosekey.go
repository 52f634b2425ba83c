// Package cosekey turns COSE-encoded credential public keys into verifier
// usable crypto keys. Only EC2 / ES256 (P-256, SHA-256) keys are accepted;
// every other (kty, alg) pair fails closed.
package cosekey

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/ldclabs/cose/iana"
	cose_key "github.com/ldclabs/cose/key"
	cose_ecdsa "github.com/ldclabs/cose/key/ecdsa"
)

var (
	ErrUnsupportedKeyType   = errors.New("cosekey: unsupported key type")
	ErrUnsupportedAlgorithm = errors.New("cosekey: unsupported algorithm")
	ErrMalformedCoordinate  = errors.New("cosekey: malformed curve coordinate")
	ErrMalformedKey         = errors.New("cosekey: malformed COSE key")
)

// p256CoordinateLen is the exact length of each P-256 coordinate.
const p256CoordinateLen = 32

// Decode unmarshals raw COSE_Key bytes and converts them with DecodeKey.
func Decode(coseBytes []byte) (*ecdsa.PublicKey, error) {
	k := cose_key.Key{}
	if err := cbor.Unmarshal(coseBytes, &k); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	return DecodeKey(k)
}

// DecodeKey converts an already decoded COSE_Key map into an ECDSA public
// key. Pure transformation, no I/O.
func DecodeKey(k cose_key.Key) (*ecdsa.PublicKey, error) {
	if kty := k.Kty(); kty != iana.KeyTypeEC2 {
		return nil, fmt.Errorf("%w: kty %d", ErrUnsupportedKeyType, kty)
	}

	alg, err := k.GetInt64(iana.KeyParameterAlg)
	if err != nil {
		return nil, fmt.Errorf("%w: missing alg parameter", ErrUnsupportedAlgorithm)
	}
	if alg != iana.AlgorithmES256 {
		return nil, fmt.Errorf("%w: alg %d", ErrUnsupportedAlgorithm, alg)
	}

	crv, err := k.GetInt64(iana.EC2KeyParameterCrv)
	if err != nil || crv != iana.EllipticCurveP_256 {
		return nil, fmt.Errorf("%w: curve %d for ES256", ErrUnsupportedAlgorithm, crv)
	}

	x, err := k.GetBytes(iana.EC2KeyParameterX)
	if err != nil || len(x) != p256CoordinateLen {
		return nil, fmt.Errorf("%w: x is %d bytes, want %d", ErrMalformedCoordinate, len(x), p256CoordinateLen)
	}
	y, err := k.GetBytes(iana.EC2KeyParameterY)
	if err != nil || len(y) != p256CoordinateLen {
		return nil, fmt.Errorf("%w: y is %d bytes, want %d", ErrMalformedCoordinate, len(y), p256CoordinateLen)
	}

	pub, err := cose_ecdsa.KeyToPublic(k)
	if err != nil {
		// the point is off curve or otherwise unusable
		return nil, fmt.Errorf("%w: %v", ErrMalformedCoordinate, err)
	}
	return pub, nil
}

// FromPublic encodes an ECDSA P-256 public key as COSE_Key bytes. Used when
// minting credentials for tests and demos.
func FromPublic(pub *ecdsa.PublicKey) ([]byte, error) {
	k, err := cose_ecdsa.KeyFromPublic(pub)
	if err != nil {
		return nil, err
	}
	if err := k.Set(iana.KeyParameterAlg, iana.AlgorithmES256); err != nil {
		return nil, err
	}
	return cbor.Marshal(k)
}
