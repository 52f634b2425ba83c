package authenticatordata

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/fxamacker/cbor/v2"
)

// Marshal is the inverse of Unmarshal. It is primarily used to mint
// authenticator data for tests and development servers.
func Marshal(t *T) ([]byte, error) {
	if len(t.RelyingPartyHash) != 32 {
		return nil, fmt.Errorf("%w: relying party hash must be 32 bytes, got %d",
			ErrInvalidLength, len(t.RelyingPartyHash))
	}

	buf := make([]byte, 0, baseLen)
	buf = append(buf, t.RelyingPartyHash...)
	buf = append(buf, byte(t.Flags))
	buf = binary.BigEndian.AppendUint32(buf, t.SignCount)

	if t.Flags.AttestedCredentialDataPresent() {
		acd := t.AttestedCredentialData
		if acd == nil {
			return nil, fmt.Errorf("%w: attested credential flag set without attested credential data",
				ErrInvalidLength)
		}
		if len(acd.CredentialID) > math.MaxUint16 {
			return nil, fmt.Errorf("%w: credential id too long: %d", ErrInvalidLength, len(acd.CredentialID))
		}

		buf = append(buf, acd.AAGUID[:]...)
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(acd.CredentialID)))
		buf = append(buf, acd.CredentialID...)

		keyBytes := acd.RawCredentialPublicKey
		if keyBytes == nil {
			var err error
			if keyBytes, err = cbor.Marshal(acd.CredentialPublicKey); err != nil {
				return nil, fmt.Errorf("marshalling credential public key: %w", err)
			}
		}
		buf = append(buf, keyBytes...)
	}

	if t.Flags.ExtensionDataPresent() {
		buf = append(buf, t.Extensions...)
	}

	return buf, nil
}
