package rest

import (
	"net/http"

	"property-sync-service/internal/contextkeys"
	"property-sync-service/internal/core/port"
	"property-sync-service/internal/core/port/usecases_port"
)

type RatesHandler struct {
	ratesUC usecases_port.RatesPort
}

func NewRatesHandler(ratesUC usecases_port.RatesPort) *RatesHandler {
	return &RatesHandler{ratesUC: ratesUC}
}

// GetRates обрабатывает GET /api/v1/rates
func (h *RatesHandler) GetRates(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context())
	handlerLogger := logger.WithFields(port.Fields{"handler": "GetRates"})

	rates, err := h.ratesUC.CurrentRates(r.Context())
	if err != nil {
		respondWithDomainError(w, handlerLogger, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, rates)
}
