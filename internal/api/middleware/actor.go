package middleware

import (
	"context"
	"net/http"
	"strings"
	"unicode"
)

type contextKey string

const ActorKey contextKey = "actor"

// AnonymousActor is recorded when a request does not name its actor.
const AnonymousActor = "anonymous"

const maxActorLength = 128

// Actor reads the optional X-Actor header into the request context. The
// value is recorded in audit events; it is not authenticated.
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := cleanActor(r.Header.Get("X-Actor"))
		ctx := context.WithValue(r.Context(), ActorKey, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetActor returns the actor from context.
func GetActor(ctx context.Context) string {
	actor, _ := ctx.Value(ActorKey).(string)
	if actor == "" {
		return AnonymousActor
	}
	return actor
}

func cleanActor(s string) string {
	s = strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s))
	if len(s) > maxActorLength {
		s = s[:maxActorLength]
	}
	if s == "" {
		return AnonymousActor
	}
	return s
}
