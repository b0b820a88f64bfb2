package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"studioline/internal/engine/auth"
)

const devTokenTTL = 12 * time.Hour

type AuthConfig struct {
	JWTSecret string
	// Studio scopes minted tokens. Defaults to the engine's studio.
	Studio           string
	AllowActorHeader bool
	DevLogin         bool
	Keys             auth.Service
	Log              *zap.Logger
}

type Principal struct {
	ActorID string
	Source  string
}

type principalKey struct{}

func (c AuthConfig) logger() *zap.Logger {
	if c.Log != nil {
		return c.Log
	}
	return zap.NewNop()
}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	if info, ok := ctx.Value(requestInfoKey{}).(*requestInfo); ok {
		info.actor = p.ActorID
	}
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

func actorIDFromContext(ctx context.Context) (string, huma.StatusError) {
	if p, ok := principalFromContext(ctx); ok && p.ActorID != "" {
		return p.ActorID, nil
	}
	return "", newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
}

// tokenClaims carries the operator as subject. Tokens minted with a studio
// claim are only honoured by a server running that studio.
type tokenClaims struct {
	Studio string `json:"studio,omitempty"`
	jwt.RegisteredClaims
}

var errWrongStudio = errors.New("token issued for another studio")

func (c AuthConfig) verifyToken(raw string) (Principal, error) {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return Principal{}, errors.New("jwt secret not configured")
	}
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return []byte(c.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	switch {
	case err != nil:
		return Principal{}, err
	case claims.Subject == "":
		return Principal{}, errors.New("token has no subject")
	case claims.Studio != "" && c.Studio != "" && claims.Studio != c.Studio:
		return Principal{}, errWrongStudio
	}
	return Principal{ActorID: claims.Subject, Source: "jwt"}, nil
}

// mintDevToken signs a short-lived token for local use.
func (c AuthConfig) mintDevToken(actorID string, now time.Time) (string, error) {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	claims := tokenClaims{
		Studio: c.Studio,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actorID,
			Issuer:    "studioline-dev",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(devTokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.JWTSecret))
}

var (
	errMissingCredentials = newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
	errBadCredentials     = newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil)
)

// resolve picks the first credential present, in order: bearer token,
// API key, then the X-Actor-Id header when it is allowed. A credential
// that is present but invalid never falls through to the next one.
func (c AuthConfig) resolve(req *http.Request) (Principal, huma.StatusError) {
	if authz := strings.TrimSpace(req.Header.Get("Authorization")); authz != "" {
		scheme, token, ok := strings.Cut(authz, " ")
		token = strings.TrimSpace(token)
		if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
			return Principal{}, errBadCredentials
		}
		p, err := c.verifyToken(token)
		if err != nil {
			c.logger().Debug("bearer token rejected", zap.Error(err))
			return Principal{}, errBadCredentials
		}
		return p, nil
	}
	if key := strings.TrimSpace(req.Header.Get("X-Api-Key")); key != "" {
		actorID, err := c.Keys.Authenticate(req.Context(), key)
		if err != nil {
			if !errors.Is(err, auth.ErrUnknownKey) {
				c.logger().Error("api key lookup failed", zap.Error(err))
			}
			return Principal{}, errBadCredentials
		}
		return Principal{ActorID: actorID, Source: "api_key"}, nil
	}
	if actor := strings.TrimSpace(req.Header.Get("X-Actor-Id")); actor != "" && c.AllowActorHeader {
		c.logger().Warn("unauthenticated X-Actor-Id header accepted", zap.String("actor", actor))
		return Principal{ActorID: actor, Source: "actor_header"}, nil
	}
	return Principal{}, errMissingCredentials
}

// newAuthMiddleware guards the API base path. Public paths and anything
// outside the base path (docs, metrics) pass through.
func newAuthMiddleware(basePath string, cfg AuthConfig) func(http.Handler) http.Handler {
	open := map[string]bool{}
	for _, p := range publicPaths(basePath) {
		open[p] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if open[req.URL.Path] || !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			p, err := cfg.resolve(req)
			if err != nil {
				respondStatusError(w, err)
				return
			}
			next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), p)))
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}

func registerMe(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current principal",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*body[WhoAmIResponse], error) {
		p, ok := principalFromContext(ctx)
		if !ok || p.ActorID == "" {
			return nil, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		}
		return reply(WhoAmIResponse{ActorID: p.ActorID, Source: p.Source}), nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*body[DevLoginResponse], error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		actor := strings.TrimSpace(input.Body.ActorID)
		if actor == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		token, err := authCfg.mintDevToken(actor, time.Now())
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return reply(DevLoginResponse{Token: token}), nil
	})
}
