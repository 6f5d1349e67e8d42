// internal/auth/session.go

// Package auth verifies the identity of callers. Tokens are ed25519 signed JWTs whose
// "sub" claim is the player id and whose "name" claim is the display name.
package auth

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/manhunt/internal/models"
)

// CookieName is the cookie carrying the token for browser clients.
const CookieName = "auth_token"

// ErrUnauthenticated is returned when a request carries no valid token.
var ErrUnauthenticated = errors.New("unauthenticated")

// Authenticator signs and verifies tokens.
type Authenticator struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	ttl        time.Duration // 0 => tokens never expire
	now        func() time.Time
}

func NewAuthenticator(privateKey ed25519.PrivateKey, publicKey ed25519.PublicKey, ttl time.Duration) *Authenticator {
	return &Authenticator{privateKey: privateKey, publicKey: publicKey, ttl: ttl, now: time.Now}
}

// GenerateAuthenticator creates a fresh key pair at runtime. Tokens do not survive a
// restart.
func GenerateAuthenticator(ttl time.Duration) (*Authenticator, error) {
	publicKey, privateKey, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return NewAuthenticator(privateKey, publicKey, ttl), nil
}

// LoadAuthenticator reads the key pair from disk. Both PEM files and raw key bytes are
// accepted.
func LoadAuthenticator(privatePath, publicPath string, ttl time.Duration) (*Authenticator, error) {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key file: %w", err)
	}

	var (
		privateKey ed25519.PrivateKey
		publicKey  ed25519.PublicKey
	)
	if isPEM(privateKeyData) {
		key, err := jwt.ParseEdPrivateKeyFromPEM(privateKeyData)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		edKey, ok := key.(ed25519.PrivateKey)
		if !ok {
			return nil, errors.New("private key is not an ed25519 key")
		}
		privateKey = edKey
	} else if len(privateKeyData) == ed25519.PrivateKeySize {
		privateKey = ed25519.PrivateKey(privateKeyData)
	} else {
		return nil, fmt.Errorf("private key must be PEM or %d raw bytes", ed25519.PrivateKeySize)
	}
	if isPEM(publicKeyData) {
		key, err := jwt.ParseEdPublicKeyFromPEM(publicKeyData)
		if err != nil {
			return nil, fmt.Errorf("failed to parse public key: %w", err)
		}
		edKey, ok := key.(ed25519.PublicKey)
		if !ok {
			return nil, errors.New("public key is not an ed25519 key")
		}
		publicKey = edKey
	} else if len(publicKeyData) == ed25519.PublicKeySize {
		publicKey = ed25519.PublicKey(publicKeyData)
	} else {
		return nil, fmt.Errorf("public key must be PEM or %d raw bytes", ed25519.PublicKeySize)
	}
	return NewAuthenticator(privateKey, publicKey, ttl), nil
}

func isPEM(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimSpace(data), []byte("-----BEGIN"))
}

// ParseTokenExpireTime reads a TOKEN_EXPIRE_TIME value. "never", "0" and "" mean no
// expiry.
func ParseTokenExpireTime(v string) (time.Duration, error) {
	if v == "never" || v == "0" || v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token expire time: %w", err)
	}
	return d, nil
}

// CreateJWT creates a signed token for user.
func (a *Authenticator) CreateJWT(user models.User) (string, error) {
	claims := jwt.MapClaims{
		"sub":  user.ID.String(),
		"name": user.Username,
		"iat":  a.now().Unix(),
	}
	if a.ttl > 0 {
		claims["exp"] = a.now().Add(a.ttl).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(a.privateKey)
}

// AuthenticateJWT verifies a token string and returns the user it identifies.
func (a *Authenticator) AuthenticateJWT(tokenString string) (models.User, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.publicKey, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return models.User{}, fmt.Errorf("%w: jwt parse error: %v", ErrUnauthenticated, err)
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok || !t.Valid {
		return models.User{}, fmt.Errorf("%w: invalid jwt claims", ErrUnauthenticated)
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return models.User{}, fmt.Errorf("%w: missing sub in jwt", ErrUnauthenticated)
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return models.User{}, fmt.Errorf("%w: sub is not a uuid", ErrUnauthenticated)
	}
	name, _ := claims["name"].(string)
	return models.User{ID: id, Username: name}, nil
}

// AuthenticateRequest reads the token from the auth_token cookie or an
// "Authorization: Bearer" header.
func (a *Authenticator) AuthenticateRequest(r *http.Request) (models.User, error) {
	token := ""
	if c, err := r.Cookie(CookieName); err == nil {
		token = c.Value
	}
	if h := r.Header.Get("Authorization"); token == "" && h != "" {
		token = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if token == "" {
		return models.User{}, fmt.Errorf("%w: no token", ErrUnauthenticated)
	}
	return a.AuthenticateJWT(token)
}
