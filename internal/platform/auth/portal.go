package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

var (
	// ErrPortalTokenInvalid is returned when a share token fails validation.
	ErrPortalTokenInvalid = errors.New("auth: portal token invalid")
	// ErrPortalTokenExpired is returned when a share token is past its expiry.
	ErrPortalTokenExpired = errors.New("auth: portal token expired")
)

// PortalClaims carry the dossier scope embedded in a client share token.
type PortalClaims struct {
	DossierID string `json:"dossier_id"`
	TenantID  string `json:"tenant_id"`
	jwt.RegisteredClaims
}

// PortalTokenService issues and verifies signed share links handed to clients.
// Tokens are HS256 JWTs scoped to a single dossier.
type PortalTokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// PortalOption customises PortalTokenService behaviour.
type PortalOption func(*PortalTokenService)

// WithPortalClock injects a custom clock, useful in tests.
func WithPortalClock(clock func() time.Time) PortalOption {
	return func(s *PortalTokenService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewPortalTokenService constructs the service with the given signing secret.
func NewPortalTokenService(secret, issuer string, ttl time.Duration, opts ...PortalOption) (*PortalTokenService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: portal signing secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: portal token ttl must be positive")
	}
	svc := &PortalTokenService{
		secret: []byte(secret),
		issuer: strings.TrimSpace(issuer),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Issue creates a share token granting read access to the given dossier.
func (s *PortalTokenService) Issue(dossierID, tenantID string) (string, time.Time, error) {
	if s == nil {
		return "", time.Time{}, errors.New("auth: portal token service not initialised")
	}
	dossierID = strings.TrimSpace(dossierID)
	if dossierID == "" {
		return "", time.Time{}, errors.New("auth: dossier id is required")
	}

	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(s.ttl)
	claims := PortalClaims{
		DossierID: dossierID,
		TenantID:  strings.TrimSpace(tenantID),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   dossierID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign portal token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify validates the share token signature, issuer, and expiry.
func (s *PortalTokenService) Verify(tokenStr string) (*PortalClaims, error) {
	if s == nil {
		return nil, errors.New("auth: portal token service not initialised")
	}
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return nil, ErrPortalTokenInvalid
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)

	claims := &PortalClaims{}
	_, err := parser.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrPortalTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrPortalTokenInvalid, err)
	}

	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, fmt.Errorf("%w: unexpected issuer", ErrPortalTokenInvalid)
	}
	if strings.TrimSpace(claims.DossierID) == "" {
		return nil, fmt.Errorf("%w: missing dossier scope", ErrPortalTokenInvalid)
	}
	return claims, nil
}

type portalContextKey string

const portalClaimsContextKey portalContextKey = "github.com/atlas-voyages/api/internal/platform/auth/portal"

// WithPortalClaims stores verified portal claims on the context.
func WithPortalClaims(ctx context.Context, claims *PortalClaims) context.Context {
	return context.WithValue(ctx, portalClaimsContextKey, claims)
}

// PortalClaimsFromContext retrieves portal claims stored on the context.
func PortalClaimsFromContext(ctx context.Context) (*PortalClaims, bool) {
	claims, ok := ctx.Value(portalClaimsContextKey).(*PortalClaims)
	if !ok || claims == nil {
		return nil, false
	}
	return claims, true
}

// RequirePortalToken validates the bearer share token and stores its claims on
// the request context.
func (s *PortalTokenService) RequirePortalToken() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				tokenStr = strings.TrimSpace(r.URL.Query().Get("token"))
			}
			if tokenStr == "" {
				respondPortalError(w, http.StatusUnauthorized, "unauthenticated", "share token missing")
				return
			}

			claims, err := s.Verify(tokenStr)
			if err != nil {
				switch {
				case errors.Is(err, ErrPortalTokenExpired):
					respondPortalError(w, http.StatusUnauthorized, "token_expired", "share token expired")
				default:
					respondPortalError(w, http.StatusUnauthorized, "invalid_token", "share token invalid")
				}
				return
			}

			ctx := WithPortalClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func respondPortalError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   code,
		"message": message,
		"status":  status,
	})
}
