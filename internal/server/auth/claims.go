// Package auth holds the server-side credential and token primitives:
// password hashing, the access token codec and refresh token issuance.
package auth

import "sort"

// Claim types understood by the server.
const (
	// ClaimSubject carries the account id.
	ClaimSubject = "sub"
	// ClaimName carries the account login.
	ClaimName = "name"
)

// registered claims are managed by the codec and never exposed as Claims.
var registered = map[string]struct{}{
	"iss": {}, "exp": {}, "iat": {}, "nbf": {}, "aud": {}, "jti": {},
}

// Claim is a single (type, value) assertion carried by an access token.
type Claim struct {
	Type  string
	Value string
}

// Principal is the identity decoded from an access token.
type Principal struct {
	Claims []Claim
}

// Find returns the value of the first claim with the given type.
func (p Principal) Find(claimType string) (string, bool) {
	for _, c := range p.Claims {
		if c.Type == claimType {
			return c.Value, true
		}
	}
	return "", false
}

// AccountID returns the subject claim.
func (p Principal) AccountID() (string, bool) {
	id, ok := p.Find(ClaimSubject)
	return id, ok && id != ""
}

// AccountClaims are the claims embedded into every access token issued for
// an account.
func AccountClaims(accountID, login string) []Claim {
	return []Claim{
		{Type: ClaimSubject, Value: accountID},
		{Type: ClaimName, Value: login},
	}
}

func sortClaims(claims []Claim) {
	sort.Slice(claims, func(i, j int) bool {
		if claims[i].Type != claims[j].Type {
			return claims[i].Type < claims[j].Type
		}
		return claims[i].Value < claims[j].Value
	})
}
