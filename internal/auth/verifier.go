package auth

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	appErrors "smart-helmet-backend/pkg/errors"
)

const mockPrefix = "mock_"

var ErrMissingToken = errors.New("missing token")

// Claims are the JWT claims issued by the identity provider. Subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Principal is an authenticated caller.
type Principal struct {
	UserID string
	Email  string
	Name   string
}

// Verifier resolves bearer credentials to users. It backs both the REST
// middleware and the viewer stream.
type Verifier struct {
	secret   []byte
	issuer   string
	mockMode bool
}

// NewVerifier builds a verifier for HS256 tokens signed with secret. With
// mockMode on and no secret, tokens of the form mock_<x> are accepted as user_mock_<x>.
func NewVerifier(secret, issuer string, mockMode bool) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer, mockMode: mockMode}
}

func (v *Verifier) MockMode() bool {
	return v.mockMode && len(v.secret) == 0
}

func (v *Verifier) Verify(token string) (*Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	if v.MockMode() {
		if !strings.HasPrefix(token, mockPrefix) {
			return nil, appErrors.ErrInvalidToken
		}
		return &Principal{
			UserID: "user_" + token,
			Email:  "mock@example.com",
			Name:   "Mock User",
		}, nil
	}
	if len(v.secret) == 0 {
		return nil, appErrors.ErrInvalidToken
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, appErrors.ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, appErrors.ErrInvalidToken
	}
	return &Principal{UserID: claims.Subject, Email: claims.Email, Name: claims.Name}, nil
}
