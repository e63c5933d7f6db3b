package middleware

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/opendots/opendots-backend/config"
	"github.com/opendots/opendots-backend/logger"
)

var (
	// ErrTokenExpired is returned when JWT validation fails due to expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is returned for signature or format failures.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenMissingClaim is returned when the subject claim is absent.
	ErrTokenMissingClaim = errors.New("token missing required claim")
	// ErrValidationMethodUnavailable is returned if neither HS256 nor JWKS can be attempted.
	ErrValidationMethodUnavailable = errors.New("no validation method available for token")
	// ErrJWKSKeyNotFound is returned if the key specified by 'kid' is not in the JWKS.
	ErrJWKSKeyNotFound = errors.New("jwks key not found")
)

const jwksCacheTTL = 15 * time.Minute

// Validator validates an access token and returns its subject.
type Validator interface {
	Validate(tokenString string) (string, error)
}

// JWTValidator checks Supabase access tokens with the project's HS256 secret
// and, for asymmetric tokens, the project's JWKS.
type JWTValidator struct {
	keys         keyGetter
	staticSecret []byte
}

var _ Validator = (*JWTValidator)(nil)

// NewJWTValidator configures the methods available from cfg.
func NewJWTValidator(cfg *config.SupabaseConfig) (*JWTValidator, error) {
	log := logger.GetLogger()
	v := &JWTValidator{}

	if cfg.JWTSecret != "" {
		v.staticSecret = []byte(cfg.JWTSecret)
	} else {
		log.Warn("JWT Validator: SUPABASE_JWT_SECRET not set, HS256 validation disabled.")
	}

	if cfg.URL != "" && cfg.AnonKey != "" {
		jwksURL := strings.TrimRight(cfg.URL, "/") + "/auth/v1/.well-known/jwks.json"
		v.keys = NewJWKSCache(jwksURL, cfg.AnonKey, jwksCacheTTL)
		log.Infow("JWT Validator: JWKS validation enabled.", "url", jwksURL)
	}

	if v.staticSecret == nil && v.keys == nil {
		return nil, errors.New("JWT validator configuration error: at least one validation method (HS256 secret or JWKS URL+key) must be configured")
	}
	return v, nil
}

// Validate tries HS256 first, then JWKS when the token names a key.
func (v *JWTValidator) Validate(tokenString string) (string, error) {
	var staticErr error
	if len(v.staticSecret) > 0 {
		userID, err := v.validateHS256(tokenString)
		if err == nil {
			return userID, nil
		}
		staticErr = err
	}

	var jwksErr error
	if v.keys != nil {
		kid, err := extractKID(tokenString)
		if err != nil {
			if staticErr != nil {
				return "", classify(staticErr)
			}
			return "", fmt.Errorf("%w: %w", ErrTokenInvalid, err)
		}
		if kid != "" {
			userID, err := v.validateJWKS(tokenString, kid)
			if err == nil {
				return userID, nil
			}
			jwksErr = err
		}
	}

	if errors.Is(staticErr, ErrTokenExpired) || errors.Is(jwksErr, ErrTokenExpired) {
		return "", ErrTokenExpired
	}
	if errors.Is(jwksErr, ErrJWKSKeyNotFound) {
		return "", jwksErr
	}
	if jwksErr != nil {
		return "", classify(jwksErr)
	}
	if staticErr != nil {
		return "", classify(staticErr)
	}
	return "", ErrValidationMethodUnavailable
}

func classify(err error) error {
	if errors.Is(err, ErrTokenExpired) || errors.Is(err, ErrTokenMissingClaim) || errors.Is(err, ErrTokenInvalid) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTokenInvalid, err)
}

// extractKID reads the key id from the unverified token header.
func extractKID(tokenString string) (string, error) {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("invalid token format, expected 3 parts, got %d", len(parts))
	}
	headerBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("failed to decode token header: %w", err)
	}
	var header struct {
		KID string `json:"kid"`
	}
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return "", fmt.Errorf("failed to unmarshal token header JSON: %w", err)
	}
	return header.KID, nil
}

func (v *JWTValidator) validateHS256(tokenString string) (string, error) {
	token, err := jwt.Parse([]byte(tokenString),
		jwt.WithKey(jwa.HS256, v.staticSecret),
		jwt.WithValidate(true),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired()) {
			return "", fmt.Errorf("%w: %w", ErrTokenExpired, err)
		}
		return "", fmt.Errorf("hs256 validation failed: %w", err)
	}
	if token.Subject() == "" {
		return "", ErrTokenMissingClaim
	}
	return token.Subject(), nil
}

func (v *JWTValidator) validateJWKS(tokenString, kid string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	key, err := v.keys.GetKey(ctx, kid)
	if err != nil {
		return "", err
	}

	token, err := jwt.Parse([]byte(tokenString),
		jwt.WithKey(key.Algorithm(), key),
		jwt.WithValidate(true),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired()) {
			return "", fmt.Errorf("%w: %w", ErrTokenExpired, err)
		}
		return "", fmt.Errorf("jwks validation failed for kid %q: %w", kid, err)
	}
	if token.Subject() == "" {
		return "", ErrTokenMissingClaim
	}
	return token.Subject(), nil
}
