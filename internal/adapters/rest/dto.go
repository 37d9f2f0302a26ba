package rest

import (
	"time"

	"property-sync-service/internal/core/domain"

	"github.com/shopspring/decimal"
)

type PreviewPriceRequest struct {
	PublishedPrice decimal.Decimal `json:"published_price"`
	QuotingRegime  string          `json:"quoting_regime"`
}

type SaveEditRequest struct {
	Record            domain.PropertyRecord `json:"record"`
	SnapshotUpdatedAt *time.Time            `json:"snapshot_updated_at"`
	Confirmed         bool                  `json:"confirmed"`
}

type SaveEditResponse struct {
	Status   string                 `json:"status"`
	Record   *domain.PropertyRecord `json:"record,omitempty"`
	Changes  []domain.ChangeRecord  `json:"changes,omitempty"`
	Locks    domain.LockMap         `json:"locks,omitempty"`
	Warnings []string               `json:"warnings,omitempty"`
}

// ValidationFailedResponse - 422 (ошибки) и 409 (нужно подтверждение)
type ValidationFailedResponse struct {
	Error                string   `json:"error"`
	Errors               []string `json:"errors"`
	Warnings             []string `json:"warnings"`
	RequiresConfirmation bool     `json:"requires_confirmation"`
}

type StaleSnapshotResponse struct {
	Error string `json:"error"`
	Stale bool   `json:"stale"`
}

// CollectionView - список, разделенный на позиции каталога и свои
type CollectionView struct {
	Catalog []string `json:"catalog"`
	Custom  []string `json:"custom"`
}

type RecordResponse struct {
	Record    domain.PropertyRecord `json:"record"`
	Amenities CollectionView        `json:"amenities"`
	Equipment CollectionView        `json:"equipment"`
}

type AuditLogResponse struct {
	RecordID domain.RecordID       `json:"record_id"`
	Limit    int                   `json:"limit"`
	Offset   int                   `json:"offset"`
	Entries  []domain.ChangeRecord `json:"entries"`
}

type PropagateRequest struct {
	Fields map[string]any `json:"fields"`
}

type PropagateResponse struct {
	domain.PropagationSummary
	Message string `json:"message"`
}

func newCollectionView(catalog, merged []string) CollectionView {
	known, custom := domain.SplitCollection(catalog, merged)
	if known == nil {
		known = []string{}
	}
	if custom == nil {
		custom = []string{}
	}
	return CollectionView{Catalog: known, Custom: custom}
}
