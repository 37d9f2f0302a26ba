package contextkeys

import (
	"context"

	"property-sync-service/internal/core/domain"
)

type actorKeyType struct{}

var actorKey = actorKeyType{}

// ContextWithActor кладет в контекст автора правки из заголовков X-Actor-*
func ContextWithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext возвращает автора и признак его наличия
func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(domain.Actor)
	return actor, ok && actor.Valid()
}
