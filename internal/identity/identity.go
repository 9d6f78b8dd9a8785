package identity

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pawmart/chatserver/internal/ierr"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleShop     Role = "shop"
	RoleRescue   Role = "rescue"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleShop, RoleRescue, RoleAdmin:
		return true
	}

	return false
}

// Identity is the resolved record behind a credential token. It is owned by
// the identity service; this process only reads it.
type Identity struct {
	Id          string `json:"id"`
	DisplayName string `json:"displayName"`
	Role        Role   `json:"role"`
}

// Verifier resolves a credential token to an identity record.
type Verifier interface {
	Verify(tokenString string) (Identity, error)
}

type Claims struct {
	jwt.RegisteredClaims
	DisplayName string `json:"name,omitempty"`
	Role        string `json:"role,omitempty"`
}

type JWTVerifier struct {
	secret    []byte
	jwtParser *jwt.Parser
}

func NewJWTVerifier(secret string) *JWTVerifier {
	jwtParser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(30*time.Second),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithAudience("chatserver"),
	)

	return &JWTVerifier{
		secret:    []byte(secret),
		jwtParser: jwtParser,
	}
}

func (v *JWTVerifier) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("unexpected signing method"))
	}

	return v.secret, nil
}

func (v *JWTVerifier) Verify(tokenString string) (Identity, error) {
	claims := Claims{}

	_, err := v.jwtParser.ParseWithClaims(tokenString, &claims, v.keyFunc)
	if err != nil {
		return Identity{}, ierr.New(ierr.ErrorCodeUnauthenticated, err)
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return Identity{}, ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("invalid subject claim"))
	}

	role := Role(claims.Role)
	if !role.Valid() {
		return Identity{}, ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("invalid role claim"))
	}

	return Identity{
		Id:          subject,
		DisplayName: claims.DisplayName,
		Role:        role,
	}, nil
}

type contextKey string

const identityKey contextKey = "identity"

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)

	return id, ok
}
