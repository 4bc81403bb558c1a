package rpc

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const jwtLeeway = 30 * time.Second

// jwtVerifier checks HS256 bearer tokens signed with the node's shared secret.
// A nil verifier means auth is disabled.
type jwtVerifier struct {
	secret []byte
	now    func() time.Time
}

func newJWTVerifier(secret string) *jwtVerifier {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil
	}
	return &jwtVerifier{secret: []byte(secret), now: time.Now}
}

func (v *jwtVerifier) Verify(token string) (jwt.MapClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(jwtLeeway),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return v.now() }),
	}
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("token validation failed")
	}
	return claims, nil
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.auth == nil {
		return nil
	}
	unauthorized := func(message string) *RPCError {
		return &RPCError{Code: codeUnauthorized, Message: message, status: http.StatusUnauthorized}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return unauthorized("missing Authorization header")
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return unauthorized("Authorization header must use Bearer scheme")
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return unauthorized("missing bearer token")
	}
	if _, err := s.auth.Verify(token); err != nil {
		return unauthorized("invalid RPC credentials")
	}
	return nil
}
