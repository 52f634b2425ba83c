package authenticatordata_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	mathrand "math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/splitsecure/go-webauthn-rp/authenticatordata"
	"github.com/splitsecure/go-webauthn-rp/cosekey"
)

func baseInput(t *testing.T, flags authenticatordata.Flags, signCount uint32) []byte {
	t.Helper()
	rpHash := sha256.Sum256([]byte("example.com"))

	buf := make([]byte, 0, 37)
	buf = append(buf, rpHash[:]...)
	buf = append(buf, byte(flags))
	return binary.BigEndian.AppendUint32(buf, signCount)
}

func TestUnmarshalBase(t *testing.T) {
	src := baseInput(t, authenticatordata.FlagUserPresent|authenticatordata.FlagUserVerified, 42)

	ad := authenticatordata.T{}
	require.NoError(t, authenticatordata.Unmarshal(src, &ad))

	rpHash := sha256.Sum256([]byte("example.com"))
	require.Equal(t, rpHash[:], ad.RelyingPartyHash)
	require.True(t, ad.Flags.UserPresent())
	require.True(t, ad.Flags.UserVerified())
	require.False(t, ad.Flags.AttestedCredentialDataPresent())
	require.False(t, ad.Flags.ExtensionDataPresent())
	require.Equal(t, uint32(42), ad.SignCount)
	require.Nil(t, ad.AttestedCredentialData)
	require.Nil(t, ad.Extensions)
}

func TestUnmarshalTruncated(t *testing.T) {
	rng := mathrand.New(mathrand.NewSource(1))

	for n := 0; n < 37; n++ {
		src := make([]byte, n)
		rng.Read(src)

		ad := authenticatordata.T{}
		err := authenticatordata.Unmarshal(src, &ad)
		require.ErrorIs(t, err, authenticatordata.ErrTruncated, "length %d", n)
	}
}

// TestUnmarshalArbitraryInput feeds random buffers of every length up to 100
// bytes. Whatever the outcome, the parser must neither panic nor index out of
// bounds.
func TestUnmarshalArbitraryInput(t *testing.T) {
	rng := mathrand.New(mathrand.NewSource(2))

	for n := 0; n <= 100; n++ {
		for round := 0; round < 50; round++ {
			src := make([]byte, n)
			rng.Read(src)

			ad := authenticatordata.T{}
			_ = authenticatordata.Unmarshal(src, &ad)
			_ = authenticatordata.UnmarshalAssertion(src, &ad)
		}
	}
}

func TestUnmarshalTrailingBytes(t *testing.T) {
	src := append(baseInput(t, authenticatordata.FlagUserPresent, 0), 0xde, 0xad)

	ad := authenticatordata.T{}
	err := authenticatordata.Unmarshal(src, &ad)
	require.ErrorIs(t, err, authenticatordata.ErrInvalidLength)
}

func TestUnmarshalExtensions(t *testing.T) {
	ext := []byte{0xa1, 0x01, 0xf5} // {1: true}
	src := append(baseInput(t, authenticatordata.FlagUserPresent|authenticatordata.FlagExtensionDataPresent, 7), ext...)

	ad := authenticatordata.T{}
	require.NoError(t, authenticatordata.Unmarshal(src, &ad))
	require.Equal(t, ext, ad.Extensions)
}

func TestUnmarshalAttestedCredential(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	coseBytes, err := cosekey.FromPublic(&key.PublicKey)
	require.NoError(t, err)

	rpHash := sha256.Sum256([]byte("example.com"))
	aaguid := uuid.MustParse("f8a011f3-8c0a-4d15-8006-17111f9edc7d")
	in := authenticatordata.T{
		RelyingPartyHash: rpHash[:],
		Flags: authenticatordata.FlagUserPresent |
			authenticatordata.FlagAttestedCredentialDataPresent,
		SignCount: 9,
		AttestedCredentialData: &authenticatordata.AttestedCredentialData{
			AAGUID:                 aaguid,
			CredentialID:           []byte{1, 2, 3, 4},
			RawCredentialPublicKey: coseBytes,
		},
	}

	src, err := authenticatordata.Marshal(&in)
	require.NoError(t, err)

	ad := authenticatordata.T{}
	require.NoError(t, authenticatordata.Unmarshal(src, &ad))

	require.NotNil(t, ad.AttestedCredentialData)
	require.Equal(t, aaguid, ad.AttestedCredentialData.AAGUID)
	require.Equal(t, []byte{1, 2, 3, 4}, ad.AttestedCredentialData.CredentialID)
	require.Equal(t, coseBytes, ad.AttestedCredentialData.RawCredentialPublicKey)
	require.Equal(t, uint32(9), ad.SignCount)

	// the decoded key must be usable by the adapter
	pub, err := cosekey.DecodeKey(ad.AttestedCredentialData.CredentialPublicKey)
	require.NoError(t, err)
	require.True(t, pub.Equal(&key.PublicKey))
}

func TestUnmarshalCredentialIDOverrun(t *testing.T) {
	src := baseInput(t, authenticatordata.FlagAttestedCredentialDataPresent, 0)
	src = append(src, make([]byte, 16)...)                // aaguid
	src = binary.BigEndian.AppendUint16(src, 0xffff)      // declared length
	src = append(src, 0x01, 0x02)                         // far fewer bytes present

	ad := authenticatordata.T{}
	err := authenticatordata.Unmarshal(src, &ad)
	require.ErrorIs(t, err, authenticatordata.ErrInvalidLength)
}

func TestUnmarshalAttestedHeaderTruncated(t *testing.T) {
	src := baseInput(t, authenticatordata.FlagAttestedCredentialDataPresent, 0)
	src = append(src, make([]byte, 10)...) // not even a full aaguid

	ad := authenticatordata.T{}
	err := authenticatordata.Unmarshal(src, &ad)
	require.ErrorIs(t, err, authenticatordata.ErrTruncated)
}

func TestUnmarshalAssertionIgnoresStaleFlags(t *testing.T) {
	// some authenticators leave the attested credential bit set on
	// assertions without shipping the data
	src := baseInput(t, authenticatordata.FlagUserPresent|authenticatordata.FlagAttestedCredentialDataPresent, 3)

	ad := authenticatordata.T{}
	require.NoError(t, authenticatordata.UnmarshalAssertion(src, &ad))
	require.Nil(t, ad.AttestedCredentialData)
	require.Equal(t, uint32(3), ad.SignCount)
}

func TestUnmarshalFailureLeavesDstUntouched(t *testing.T) {
	ad := authenticatordata.T{SignCount: 99}
	err := authenticatordata.Unmarshal([]byte{0x01}, &ad)
	require.Error(t, err)
	require.Equal(t, uint32(99), ad.SignCount)
}
