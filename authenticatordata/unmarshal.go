package authenticatordata

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// baseLen is the fixed prefix: 32-byte RP ID hash, 1 flags byte, 4-byte
// big-endian sign count.
const baseLen = 32 + 1 + 4

// attestedHeaderLen is the fixed prefix of the attested credential data
// section: 16-byte AAGUID and a 2-byte big-endian credential ID length.
const attestedHeaderLen = 16 + 2

// Unmarshal parses authenticator data into dst. The input is attacker
// controlled: every read is bounds checked and no partial result is left in
// dst on failure.
func Unmarshal(src []byte, dst *T) error {
	parsed := T{}

	cursor, err := unmarshalBase(src, &parsed)
	if err != nil {
		return err
	}

	if parsed.Flags.AttestedCredentialDataPresent() {
		cursor, err = unmarshalAttestedCredentialData(cursor, &parsed)
		if err != nil {
			return err
		}
	}

	if parsed.Flags.ExtensionDataPresent() {
		if len(cursor) == 0 {
			return fmt.Errorf("%w: extension flag set with no extension bytes", ErrTruncated)
		}
		parsed.Extensions = cursor
	} else if len(cursor) != 0 {
		return fmt.Errorf("%w: %d trailing bytes not claimed by any flag", ErrInvalidLength, len(cursor))
	}

	*dst = parsed
	return nil
}

// UnmarshalAssertion parses the authenticator data of an assertion, which
// carries only the fixed prefix plus optional extensions. Some authenticators
// keep stale flag bits here, so the attested credential flag is not honored.
func UnmarshalAssertion(src []byte, dst *T) error {
	parsed := T{}

	cursor, err := unmarshalBase(src, &parsed)
	if err != nil {
		return err
	}
	if parsed.Flags.ExtensionDataPresent() && len(cursor) > 0 {
		parsed.Extensions = cursor
	}

	*dst = parsed
	return nil
}

func unmarshalBase(src []byte, dst *T) (rest []byte, err error) {
	if len(src) < baseLen {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrTruncated, len(src), baseLen)
	}

	cursor := src

	dst.RelyingPartyHash = cursor[0:32]
	cursor = cursor[32:]

	dst.Flags = Flags(cursor[0])
	cursor = cursor[1:]

	dst.SignCount = binary.BigEndian.Uint32(cursor)
	cursor = cursor[4:]

	return cursor, nil
}

func unmarshalAttestedCredentialData(src []byte, dst *T) (rest []byte, err error) {
	if len(src) < attestedHeaderLen {
		return nil, fmt.Errorf("%w: attested credential data header needs %d bytes, have %d",
			ErrTruncated, attestedHeaderLen, len(src))
	}

	acd := AttestedCredentialData{}
	copy(acd.AAGUID[:], src[0:16])

	credLen := int(binary.BigEndian.Uint16(src[16:18]))
	cursor := src[attestedHeaderLen:]
	if credLen > len(cursor) {
		return nil, fmt.Errorf("%w: credential id length %d overruns remaining %d bytes",
			ErrInvalidLength, credLen, len(cursor))
	}
	acd.CredentialID = cursor[:credLen]
	cursor = cursor[credLen:]

	if len(cursor) == 0 {
		return nil, fmt.Errorf("%w: no bytes left for credential public key", ErrTruncated)
	}

	dec := cbor.NewDecoder(bytes.NewReader(cursor))
	if err := dec.Decode(&acd.CredentialPublicKey); err != nil {
		return nil, fmt.Errorf("%w: credential public key: %v", ErrInvalidLength, err)
	}
	acd.RawCredentialPublicKey = cursor[:dec.NumBytesRead()]

	dst.AttestedCredentialData = &acd
	return cursor[dec.NumBytesRead():], nil
}
