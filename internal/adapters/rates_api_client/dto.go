package rates_api_client

import (
	"time"

	"github.com/shopspring/decimal"
)

// RatesResponse - ответ сервиса курсов. Числа приходят и строкой, и числом.
type RatesResponse struct {
	Official decimal.Decimal `json:"official"`
	Parallel decimal.Decimal `json:"parallel"`
	AsOf     *time.Time      `json:"as_of,omitempty"`
	Source   string          `json:"source,omitempty"`
}
