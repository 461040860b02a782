package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	svcErr "github.com/sengunthar/matrimony/internal/errors"
)

// Claims is the JWT body: {id, email, role} plus the registered times.
type Claims struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 tokens.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret), now: time.Now}
}

// Issue signs a token for p that expires after ttl.
func (i *Issuer) Issue(p Principal, ttl time.Duration) (string, error) {
	now := i.now()
	claims := Claims{
		ID:    p.Subject(),
		Email: p.Mail(),
		Role:  p.Role(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a token and returns the principal it names. Any failure,
// including an unknown role, is ErrInvalidToken.
func (i *Issuer) Verify(tokenString string) (Principal, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil || !token.Valid {
		return nil, svcErr.ErrInvalidToken
	}

	switch claims.Role {
	case RoleUser:
		return User{UserID: claims.ID, Email: claims.Email}, nil
	case RoleAdmin:
		return Admin{AdminID: claims.ID, Email: claims.Email}, nil
	default:
		return nil, svcErr.ErrInvalidToken
	}
}
