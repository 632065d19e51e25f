package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hackgods/salon-scheduling/internal/appointment"
)

const actorKey contextKey = "actor"

var (
	errNoCredentials  = errors.New("missing credentials")
	errBadCredentials = errors.New("invalid credentials")
)

// Claims is the token shape issued by the auth layer.
type Claims struct {
	Role       string `json:"role"`
	BusinessID string `json:"business_id,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator turns a request into an actor. With a secret it only accepts
// HS256 bearer tokens; without one it trusts X-Actor-* headers, which is
// meant for local development.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

func (a *Authenticator) Authenticate(r *http.Request) (appointment.Actor, error) {
	if len(a.secret) > 0 {
		return a.fromToken(bearerToken(r))
	}
	return fromHeaders(r)
}

func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	// browsers cannot set headers on websocket upgrades
	return r.URL.Query().Get("access_token")
}

func (a *Authenticator) fromToken(raw string) (appointment.Actor, error) {
	if raw == "" {
		return appointment.Actor{}, errNoCredentials
	}

	claims := Claims{}
	token, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return appointment.Actor{}, errBadCredentials
	}

	return buildActor(claims.Subject, claims.Role, claims.BusinessID)
}

func fromHeaders(r *http.Request) (appointment.Actor, error) {
	id := r.Header.Get("X-Actor-Id")
	role := r.Header.Get("X-Actor-Role")
	business := r.Header.Get("X-Business-Id")
	if id == "" {
		q := r.URL.Query()
		id, role, business = q.Get("actor_id"), q.Get("role"), q.Get("business_id")
	}
	if id == "" {
		return appointment.Actor{}, errNoCredentials
	}
	return buildActor(id, role, business)
}

func buildActor(subject, role, business string) (appointment.Actor, error) {
	id, err := uuid.Parse(subject)
	if err != nil {
		return appointment.Actor{}, errBadCredentials
	}
	actor := appointment.Actor{ID: id, Role: appointment.Role(strings.ToLower(role))}
	if !actor.Role.Valid() {
		return appointment.Actor{}, errBadCredentials
	}
	if actor.Role.Staff() {
		bid, err := uuid.Parse(business)
		if err != nil {
			return appointment.Actor{}, errBadCredentials
		}
		actor.BusinessID = bid
	}
	return actor, nil
}

// IssueToken signs a token for actor. Used by tooling and tests.
func IssueToken(secret string, actor appointment.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if actor.BusinessID != uuid.Nil {
		claims.BusinessID = actor.BusinessID.String()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ActorMiddleware attaches the actor when credentials are present. Bad
// credentials are rejected; missing ones are left to RequireActor.
func ActorMiddleware(auth *Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, err := auth.Authenticate(r)
			switch {
			case err == nil:
				r = r.WithContext(context.WithValue(r.Context(), actorKey, actor))
			case errors.Is(err, errNoCredentials):
			default:
				writeError(w, http.StatusUnauthorized, "unauthenticated", err.Error(), false)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ActorFrom(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "credentials required", false)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func ActorFrom(ctx context.Context) (appointment.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(appointment.Actor)
	return actor, ok
}
