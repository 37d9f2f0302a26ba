package port

import (
	"context"

	"property-sync-service/internal/core/domain"
)

type PropagationReporterPort interface {
	ReportPropagation(ctx context.Context, summary domain.PropagationSummary) error
}
