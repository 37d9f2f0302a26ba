package usecases_port

import (
	"context"

	"property-sync-service/internal/core/domain"
)

type PropagateProjectPort interface {
	Propagate(ctx context.Context, cmd domain.PropagateCommand) (*domain.PropagationSummary, error)
}
