package vaultfake

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/meecokeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// issuer signs and checks the session tokens of one realm (vault, keystore or
// admission); every realm has its own secret. Claims stay minimal: vault
// tokens are delivered RSA-OAEP encrypted and must fit into a single block of
// a 2048-bit key.
type issuer struct {
	secret   []byte
	validity time.Duration
}

func newIssuer(validity time.Duration) *issuer {
	return &issuer{secret: common.GenerateRandByteArray(32), validity: validity}
}

func (i *issuer) Issue(subject string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(i.validity)),
	})
	return token.SignedString(i.secret)
}

// Subject validates tokenString and returns the subject it was issued to.
func (i *issuer) Subject(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrInvalidToken
	}
	if !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
