package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tflic/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// TokenOptions configures a TokenCodec.
type TokenOptions struct {
	Issuer          string
	SecurityKey     string
	Lifetime        time.Duration
	ValidAlgorithms []string
}

// TokenCodec issues and reads HMAC-signed JWT access tokens.
//
// Tokens are signed with the first of ValidAlgorithms (HS256 by default) and
// carry iss, iat, nbf and exp next to the caller's claims.
type TokenCodec struct {
	issuer     string
	key        []byte
	lifetime   time.Duration
	algorithms []string
	method     jwt.SigningMethod
	now        func() time.Time
}

func NewTokenCodec(opts TokenOptions) (*TokenCodec, error) {
	if opts.SecurityKey == "" {
		return nil, errors.New("security key must not be empty")
	}
	algorithms := opts.ValidAlgorithms
	if len(algorithms) == 0 {
		algorithms = []string{jwt.SigningMethodHS256.Alg()}
	}
	method, ok := jwt.GetSigningMethod(algorithms[0]).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithms[0])
	}
	return &TokenCodec{
		issuer:     opts.Issuer,
		key:        []byte(opts.SecurityKey),
		lifetime:   opts.Lifetime,
		algorithms: algorithms,
		method:     method,
		now:        time.Now,
	}, nil
}

// Generate signs a token embedding claims. Claim types that collide with the
// registered names managed here are rejected.
func (c *TokenCodec) Generate(claims []Claim) (string, error) {
	now := c.now()

	mc := jwt.MapClaims{
		"iss": c.issuer,
		"iat": jwt.NewNumericDate(now),
		"nbf": jwt.NewNumericDate(now),
		"exp": jwt.NewNumericDate(now.Add(c.lifetime)),
	}
	for _, cl := range claims {
		if _, ok := registered[cl.Type]; ok {
			return "", fmt.Errorf("claim %q is reserved", cl.Type)
		}
		mc[cl.Type] = cl.Value
	}

	return jwt.NewWithClaims(c.method, mc).SignedString(c.key)
}

// GetPrincipalFromToken checks the signature, algorithm and issuer of a token
// but not its lifetime, so identity can be recovered from an expired token
// during refresh. Every failure yields common.ErrInvalidToken.
func (c *TokenCodec) GetPrincipalFromToken(tokenString string) (Principal, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods(c.algorithms),
		jwt.WithoutClaimsValidation(),
	)

	mc := jwt.MapClaims{}
	if _, err := parser.ParseWithClaims(tokenString, mc, c.keyFunc); err != nil {
		return Principal{}, common.ErrInvalidToken
	}

	iss, err := mc.GetIssuer()
	if err != nil || iss != c.issuer {
		return Principal{}, common.ErrInvalidToken
	}

	return toPrincipal(mc), nil
}

// Validate applies the full serving policy: signature, algorithm, issuer and
// lifetime with no clock skew. The audience is not checked. Expired tokens
// yield common.ErrTokenExpired, anything else common.ErrInvalidToken.
func (c *TokenCodec) Validate(tokenString string) (Principal, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods(c.algorithms),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)

	mc := jwt.MapClaims{}
	if _, err := parser.ParseWithClaims(tokenString, mc, c.keyFunc); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Principal{}, common.ErrTokenExpired
		}
		return Principal{}, common.ErrInvalidToken
	}

	return toPrincipal(mc), nil
}

func (c *TokenCodec) keyFunc(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
	}
	return c.key, nil
}

func toPrincipal(mc jwt.MapClaims) Principal {
	claims := make([]Claim, 0, len(mc))
	for k, v := range mc {
		if _, ok := registered[k]; ok {
			continue
		}
		switch value := v.(type) {
		case string:
			claims = append(claims, Claim{Type: k, Value: value})
		case []any:
			for _, item := range value {
				claims = append(claims, Claim{Type: k, Value: fmt.Sprint(item)})
			}
		default:
			claims = append(claims, Claim{Type: k, Value: fmt.Sprint(value)})
		}
	}
	sortClaims(claims)
	return Principal{Claims: claims}
}
