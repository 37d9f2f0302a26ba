package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Rates - официальный и параллельный курс (единиц местной валюты за доллар)
type Rates struct {
	Official decimal.Decimal `json:"official_rate"`
	Parallel decimal.Decimal `json:"parallel_rate"`
	AsOf     time.Time       `json:"as_of"`
	Source   string          `json:"source"`
}

// Usable - оба курса положительные
func (r Rates) Usable() bool {
	return r.Official.IsPositive() && r.Parallel.IsPositive()
}
