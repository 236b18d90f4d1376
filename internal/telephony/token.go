package telephony

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer builds Twilio Voice access tokens: HS256 JWTs signed with the
// API secret, carrying a voice grant scoped to outbound calling only. The
// wire format follows the provider's access-token layout (cty twilio-fat;v=1).

const (
	tokenContentType = "twilio-fat;v=1"
	defaultTokenTTL  = time.Hour
)

type TokenIssuer struct {
	accountSID string
	apiKey     string
	apiSecret  []byte
	appSID     string

	ttl   time.Duration
	clock func() time.Time
}

func NewTokenIssuer(accountSID, apiKey, apiSecret, appSID string) (*TokenIssuer, error) {
	if accountSID == "" || apiKey == "" || apiSecret == "" || appSID == "" {
		return nil, errors.New("telephony: account sid, api key, api secret and app sid are required")
	}
	return &TokenIssuer{
		accountSID: accountSID,
		apiKey:     apiKey,
		apiSecret:  []byte(apiSecret),
		appSID:     appSID,
		ttl:        defaultTokenTTL,
		clock:      time.Now,
	}, nil
}

type voiceOutgoing struct {
	ApplicationSID string `json:"application_sid"`
}

type voiceGrant struct {
	Outgoing voiceOutgoing `json:"outgoing"`
}

// grants omits the incoming section entirely: the identity may place calls
// but never accept them.
type grants struct {
	Identity string     `json:"identity"`
	Voice    voiceGrant `json:"voice"`
}

type capabilityClaims struct {
	jwt.RegisteredClaims
	Grants grants `json:"grants"`
}

// Issue returns a short-lived capability token for the shared agent identity.
func (i *TokenIssuer) Issue() (string, error) {
	now := i.clock()

	claims := capabilityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        fmt.Sprintf("%s-%d", i.apiKey, now.Unix()),
			Issuer:    i.apiKey,
			Subject:   i.accountSID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		Grants: grants{
			Identity: Identity,
			Voice: voiceGrant{
				Outgoing: voiceOutgoing{ApplicationSID: i.appSID},
			},
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	t.Header["cty"] = tokenContentType
	return t.SignedString(i.apiSecret)
}
