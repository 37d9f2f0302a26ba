package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Actor - кто выполняет операцию. Личность не проверяется, ей доверяют.
type Actor struct {
	ID   string `json:"actor_id"`
	Name string `json:"actor_name"`
}

func (a Actor) Valid() bool {
	return a.ID != ""
}

// SaveEditCommand - сохранение из формы редактора
type SaveEditCommand struct {
	RecordID RecordID
	Proposed PropertyRecord
	// SnapshotUpdatedAt - версия записи на момент открытия формы
	SnapshotUpdatedAt time.Time
	Confirmed         bool
	Actor             Actor
}

type SaveEditResult struct {
	Record   PropertyRecord   `json:"record"`
	Changes  []ChangeRecord   `json:"changes"`
	NewLocks LockMap          `json:"locks"`
	Result   ValidationResult `json:"validation"`
}

// PricePreview - ответ на ввод цены в форме
type PricePreview struct {
	CanonicalPriceUSD decimal.Decimal `json:"canonical_price_usd"`
	OfficialRate      decimal.Decimal `json:"official_rate"`
	ParallelRate      decimal.Decimal `json:"parallel_rate"`
	RatesAsOf         time.Time       `json:"rates_as_of"`
}

// PropagateCommand - каскад общих атрибутов проекта на юниты
type PropagateCommand struct {
	JobID    string
	ParentID RecordID
	Fields   []FieldValue
	Actor    Actor
}
