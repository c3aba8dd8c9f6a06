// Package domain defines the core domain models for aerie-cli.
package domain

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// HasuraClaimsKey is the JWT claim holding the role claims.
const HasuraClaimsKey = "https://hasura.io/jwt/claims"

// Token is a parsed bearer credential. The signature is never verified
// client side; the host decides whether the token is still honored.
type Token struct {
	Encoded      string   `json:"encoded"`
	AllowedRoles []string `json:"allowed_roles"`
	DefaultRole  string   `json:"default_role"`
	Username     string   `json:"username"`
}

// hasuraClaims is the role claim object issued by the gateway.
type hasuraClaims struct {
	AllowedRoles []string `json:"x-hasura-allowed-roles"`
	DefaultRole  *string  `json:"x-hasura-default-role"`
}

// tokenClaims is the payload shape of a gateway token. Registered claims
// such as exp are not read.
type tokenClaims struct {
	Hasura   *hasuraClaims `json:"https://hasura.io/jwt/claims"`
	Username *string       `json:"username"`
}

// tokenParser only decodes segments; the header and signature are opaque.
var tokenParser = jwt.NewParser(jwt.WithPaddingAllowed())

// ParseToken parses an encoded token into a Token. Only the payload
// segment is decoded.
func ParseToken(encoded string) (*Token, error) {
	parts := strings.Split(encoded, ".")
	if len(parts) != 3 {
		return nil, ErrTokenMalformed.WithDetails(fmt.Sprintf("expected 3 segments, got %d", len(parts)))
	}

	payload, err := tokenParser.DecodeSegment(parts[1])
	if err != nil {
		return nil, ErrTokenUndecodable.WithDetails("payload is not base64url").WithCause(err)
	}
	var claims tokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, ErrTokenUndecodable.WithDetails("payload is not a JSON object").WithCause(err)
	}

	switch {
	case claims.Hasura == nil:
		return nil, ErrTokenMalformed.WithDetails("missing " + HasuraClaimsKey)
	case len(claims.Hasura.AllowedRoles) == 0:
		return nil, ErrTokenMalformed.WithDetails("missing x-hasura-allowed-roles")
	case claims.Hasura.DefaultRole == nil:
		return nil, ErrTokenMalformed.WithDetails("missing x-hasura-default-role")
	case claims.Username == nil:
		return nil, ErrTokenMalformed.WithDetails("missing username")
	}
	if !slices.Contains(claims.Hasura.AllowedRoles, *claims.Hasura.DefaultRole) {
		return nil, ErrTokenMalformed.WithDetails(fmt.Sprintf("default role %q is not an allowed role", *claims.Hasura.DefaultRole))
	}

	return &Token{
		Encoded:      encoded,
		AllowedRoles: slices.Clone(claims.Hasura.AllowedRoles),
		DefaultRole:  *claims.Hasura.DefaultRole,
		Username:     *claims.Username,
	}, nil
}

// AllowsRole reports whether role is in the token's allowed roles.
func (t *Token) AllowsRole(role string) bool {
	return slices.Contains(t.AllowedRoles, role)
}
