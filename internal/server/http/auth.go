package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/and161185/warranty-keeper/internal/errs"
	"github.com/and161185/warranty-keeper/internal/model"
	"github.com/golang-jwt/jwt/v5"
)

type ctxKey string

const (
	actorKey     ctxKey = "wk.actor"
	requestIDKey ctxKey = "wk.requestID"
)

// Claims are the bearer token claims: sub is the caller ID, role one of the partner roles.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

var bearerRoles = map[model.Role]bool{
	model.RoleAgent:     true,
	model.RoleInstaller: true,
	model.RoleInspector: true,
	model.RoleAdmin:     true,
}

// WithActor stores the authenticated actor in context.
func WithActor(ctx context.Context, a model.Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// ActorFromCtx fetches the authenticated actor.
func ActorFromCtx(ctx context.Context) (model.Actor, bool) {
	a, ok := ctx.Value(actorKey).(model.Actor)
	return a, ok
}

// SignToken mints an HS256 bearer token for actor.
func SignToken(key []byte, a model.Actor, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		Role: string(a.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

// parseActor verifies an HS256 token and returns the actor it names.
func parseActor(raw string, key []byte) (model.Actor, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return key, nil
	}, jwt.WithLeeway(30*time.Second), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return model.Actor{}, fmt.Errorf("%w: invalid token", errs.ErrUnauthorized)
	}
	if claims.Subject == "" {
		return model.Actor{}, fmt.Errorf("%w: missing subject", errs.ErrUnauthorized)
	}
	role := model.Role(strings.ToUpper(claims.Role))
	if !bearerRoles[role] {
		return model.Actor{}, fmt.Errorf("%w: unknown role %q", errs.ErrUnauthorized, claims.Role)
	}
	return model.Actor{ID: claims.Subject, Role: role}, nil
}

func bearerToken(r *http.Request) (string, error) {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
		if t := strings.TrimSpace(v[7:]); t != "" {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: no bearer token", errs.ErrUnauthorized)
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := bearerToken(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		actor, err := parseActor(raw, s.jwtKey)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

func requireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a, ok := ActorFromCtx(r.Context())
			if !ok || !a.Is(roles...) {
				writeJSON(w, http.StatusForbidden, apiError{Error: "FORBIDDEN", Message: errs.ErrForbidden.Error()})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func actor(r *http.Request) model.Actor {
	a, _ := ActorFromCtx(r.Context())
	return a
}
