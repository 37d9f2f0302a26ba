package rest

import (
	"net/http"
	"strings"

	"property-sync-service/internal/contextkeys"
	"property-sync-service/internal/core/domain"
)

const (
	headerActorID   = "X-Actor-ID"
	headerActorName = "X-Actor-Name"
)

// ActorMiddleware берет автора правки из заголовков. Личность не проверяется:
// заголовки выставляет шлюз перед сервисом.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := domain.Actor{
			ID:   strings.TrimSpace(r.Header.Get(headerActorID)),
			Name: strings.TrimSpace(r.Header.Get(headerActorName)),
		}
		if !actor.Valid() {
			WriteJSONError(w, http.StatusUnauthorized, headerActorID+" header is missing")
			return
		}
		if actor.Name == "" {
			actor.Name = actor.ID
		}

		ctx := contextkeys.ContextWithActor(r.Context(), actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
