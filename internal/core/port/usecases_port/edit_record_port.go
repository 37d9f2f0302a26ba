package usecases_port

import (
	"context"

	"property-sync-service/internal/core/domain"

	"github.com/shopspring/decimal"
)

// EditRecordPort - операции формы редактирования (админка или кабинет брокера)
type EditRecordPort interface {
	PreviewPrice(ctx context.Context, published decimal.Decimal, regime domain.QuotingRegime) (*domain.PricePreview, error)
	Validate(ctx context.Context, proposed domain.PropertyRecord) (*domain.ValidationResult, error)
	Save(ctx context.Context, cmd domain.SaveEditCommand) (*domain.SaveEditResult, error)
}
