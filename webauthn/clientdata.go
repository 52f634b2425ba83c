package webauthn

import (
	"encoding/base64"
	"encoding/json"
)

// collectedClientData is the browser-produced client data JSON. Only the
// fields this package validates are decoded.
//
// https://www.w3.org/TR/webauthn/#dictdef-collectedclientdata
type collectedClientData struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"` // base64url, no padding
	Origin    string `json:"origin"`
}

// checkClientData validates type and origin and returns the decoded
// challenge value. These are the cheap checks: they run before any
// cryptographic work so a stale or cross-origin response never reaches the
// verifier.
func (rp *RelyingParty) checkClientData(raw []byte, wantType string) ([]byte, *CeremonyError) {
	var cd collectedClientData
	if err := json.Unmarshal(raw, &cd); err != nil {
		return nil, rejectErr(ReasonClientDataInvalid, err, "client data is not valid JSON")
	}

	if cd.Type != wantType {
		return nil, reject(ReasonClientDataInvalid, "client data type %q, want %q", cd.Type, wantType)
	}

	if _, ok := rp.allowedOrigins[cd.Origin]; !ok {
		return nil, reject(ReasonOriginNotAllowed, "origin %q is not allowed", cd.Origin)
	}

	challenge, err := base64.RawURLEncoding.DecodeString(cd.Challenge)
	if err != nil {
		return nil, rejectErr(ReasonClientDataInvalid, err, "challenge is not base64url")
	}

	return challenge, nil
}
