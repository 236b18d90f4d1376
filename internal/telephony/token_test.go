package telephony

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testIssuer(t *testing.T) *TokenIssuer {
	t.Helper()
	i, err := NewTokenIssuer("AC123", "SK456", "topsecret", "AP789")
	if err != nil {
		t.Fatalf("issuer construction failed: %v", err)
	}
	i.clock = func() time.Time { return time.Unix(1700000000, 0).UTC() }
	return i
}

func TestIssue_SignedTokenCarriesVoiceGrant(t *testing.T) {
	signed, err := testIssuer(t).Issue()
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(func() time.Time {
		return time.Unix(1700000100, 0).UTC()
	}))
	var claims capabilityClaims
	tok, err := parser.ParseWithClaims(signed, &claims, func(token *jwt.Token) (any, error) {
		return []byte("topsecret"), nil
	})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if cty, _ := tok.Header["cty"].(string); cty != "twilio-fat;v=1" {
		t.Fatalf("expected provider content type header, got %q", cty)
	}
	if claims.Issuer != "SK456" || claims.Subject != "AC123" {
		t.Fatalf("unexpected iss/sub: %q %q", claims.Issuer, claims.Subject)
	}
	if claims.Grants.Identity != Identity {
		t.Fatalf("expected identity %q, got %q", Identity, claims.Grants.Identity)
	}
	if claims.Grants.Voice.Outgoing.ApplicationSID != "AP789" {
		t.Fatalf("expected app sid in voice grant, got %q", claims.Grants.Voice.Outgoing.ApplicationSID)
	}
	// Compare instants; parsed NumericDate times carry a different Location.
	if want := time.Unix(1700000000, 0).Add(time.Hour); !claims.ExpiresAt.Time.Equal(want) {
		t.Fatalf("expected 1h ttl, got %v", claims.ExpiresAt.Time)
	}
}

func TestIssue_OutboundOnlyGrant(t *testing.T) {
	signed, err := testIssuer(t).Issue()
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	// Inspect the raw grants object: no incoming section may be present.
	var claims struct {
		Grants map[string]json.RawMessage `json:"grants"`
	}
	tok, _, err := jwt.NewParser().ParseUnverified(signed, jwt.MapClaims{})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	raw, err := json.Marshal(tok.Claims)
	if err != nil {
		t.Fatalf("marshal claims: %v", err)
	}
	if err := json.Unmarshal(raw, &claims); err != nil {
		t.Fatalf("unmarshal grants: %v", err)
	}
	var voice map[string]json.RawMessage
	if err := json.Unmarshal(claims.Grants["voice"], &voice); err != nil {
		t.Fatalf("unmarshal voice grant: %v", err)
	}
	if _, ok := voice["incoming"]; ok {
		t.Fatalf("token must not allow inbound call acceptance")
	}
}

func TestNewTokenIssuer_RequiresAllCredentials(t *testing.T) {
	if _, err := NewTokenIssuer("", "SK", "secret", "AP"); err == nil {
		t.Fatalf("expected error for missing account sid")
	}
	if _, err := NewTokenIssuer("AC", "SK", "", "AP"); err == nil {
		t.Fatalf("expected error for missing api secret")
	}
}
