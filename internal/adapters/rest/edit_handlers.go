package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"property-sync-service/internal/contextkeys"
	"property-sync-service/internal/contracts"
	"property-sync-service/internal/core/domain"
	"property-sync-service/internal/core/port"
	"property-sync-service/internal/core/port/usecases_port"

	"github.com/go-chi/chi/v5"
)

// EditHandler - форма редактирования одного редактора (админка или кабинет брокера)
type EditHandler struct {
	editor domain.Editor
	editUC usecases_port.EditRecordPort
}

func NewEditHandler(editor domain.Editor, editUC usecases_port.EditRecordPort) *EditHandler {
	return &EditHandler{
		editor: editor,
		editUC: editUC,
	}
}

// PreviewPrice обрабатывает POST /api/v1/{editor}/records/{recordID}/preview-price
func (h *EditHandler) PreviewPrice(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context())
	handlerLogger := logger.WithFields(port.Fields{
		"handler": "PreviewPrice",
		"editor":  h.editor,
	})

	body, err := readBody(r)
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := contracts.Validate(contracts.PreviewPriceRequest, contracts.Version1, body); err != nil {
		handlerLogger.Warn("Request body failed schema validation", port.Fields{"error": err.Error()})
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req PreviewPriceRequest
	if err := json.Unmarshal(body, &req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	preview, err := h.editUC.PreviewPrice(r.Context(), req.PublishedPrice, domain.QuotingRegime(req.QuotingRegime))
	if err != nil {
		respondWithDomainError(w, handlerLogger, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, preview)
}

// Validate обрабатывает POST /api/v1/{editor}/records/{recordID}/validate, тело - предлагаемая запись
func (h *EditHandler) Validate(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context())
	handlerLogger := logger.WithFields(port.Fields{
		"handler":   "ValidateRecord",
		"editor":    h.editor,
		"record_id": chi.URLParam(r, "recordID"),
	})

	body, err := readBody(r)
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := contracts.Validate(contracts.ValidateRecordRequest, contracts.Version1, body); err != nil {
		handlerLogger.Warn("Request body failed schema validation", port.Fields{"error": err.Error()})
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	var proposed domain.PropertyRecord
	if err := json.Unmarshal(body, &proposed); err != nil {
		handlerLogger.Warn("Failed to decode proposed record", port.Fields{"error": err.Error()})
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	proposed.ID = domain.RecordID(chi.URLParam(r, "recordID"))

	result, err := h.editUC.Validate(r.Context(), proposed)
	if err != nil {
		respondWithDomainError(w, handlerLogger, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, result)
}

// Save обрабатывает PUT /api/v1/{editor}/records/{recordID}
func (h *EditHandler) Save(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID := domain.RecordID(chi.URLParam(r, "recordID"))

	logger := contextkeys.LoggerFromContext(ctx)
	handlerLogger := logger.WithFields(port.Fields{
		"handler":   "SaveEdit",
		"editor":    h.editor,
		"record_id": recordID,
	})

	actor, ok := contextkeys.ActorFromContext(ctx)
	if !ok {
		WriteJSONError(w, http.StatusUnauthorized, headerActorID+" header is missing")
		return
	}

	body, err := readBody(r)
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := contracts.Validate(contracts.SaveEditRequest, contracts.Version1, body); err != nil {
		handlerLogger.Warn("Request body failed schema validation", port.Fields{"error": err.Error()})
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req SaveEditRequest
	if err := json.Unmarshal(body, &req); err != nil {
		handlerLogger.Warn("Failed to decode save request", port.Fields{"error": err.Error()})
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cmd := domain.SaveEditCommand{
		RecordID:  recordID,
		Proposed:  req.Record,
		Confirmed: req.Confirmed,
		Actor:     actor,
	}
	if req.SnapshotUpdatedAt != nil {
		cmd.SnapshotUpdatedAt = *req.SnapshotUpdatedAt
	}

	result, err := h.editUC.Save(ctx, cmd)
	if err != nil {
		if errors.Is(err, domain.ErrNothingToSave) {
			RespondWithJSON(w, http.StatusOK, SaveEditResponse{Status: "nothing_to_save"})
			return
		}
		respondWithDomainError(w, handlerLogger, err)
		return
	}

	RespondWithJSON(w, http.StatusOK, SaveEditResponse{
		Status:   "saved",
		Record:   &result.Record,
		Changes:  result.Changes,
		Locks:    result.NewLocks,
		Warnings: result.Result.Warnings,
	})
}

// respondWithDomainError переводит ошибки ядра в HTTP-статусы
func respondWithDomainError(w http.ResponseWriter, logger port.LoggerPort, err error) {
	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr):
		status := http.StatusConflict
		if validationErr.Result.Blocked() {
			status = http.StatusUnprocessableEntity
		}
		RespondWithJSON(w, status, ValidationFailedResponse{
			Error:                err.Error(),
			Errors:               nonNil(validationErr.Result.Errors),
			Warnings:             nonNil(validationErr.Result.Warnings),
			RequiresConfirmation: validationErr.Result.NeedsConfirmation(),
		})
	case errors.Is(err, domain.ErrStaleSnapshot):
		RespondWithJSON(w, http.StatusConflict, StaleSnapshotResponse{Error: err.Error(), Stale: true})
	case errors.Is(err, domain.ErrRecordNotFound):
		WriteJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrFieldNotEditable):
		WriteJSONError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrActorRequired):
		WriteJSONError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrRatesUnavailable):
		logger.Error("Exchange rates unavailable", err, nil)
		WriteJSONError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, domain.ErrInvalidRecord),
		errors.Is(err, domain.ErrUnknownField),
		errors.Is(err, domain.ErrUnknownQuotingRegime),
		errors.Is(err, domain.ErrUnknownInclusionState),
		errors.Is(err, domain.ErrFieldNotPropagatable):
		WriteJSONError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Error("Use case failed", err, nil)
		WriteJSONError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
