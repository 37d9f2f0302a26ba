package rest

import (
	"encoding/json"
	"net/http"

	"property-sync-service/internal/contextkeys"
	"property-sync-service/internal/contracts"
	"property-sync-service/internal/core/domain"
	"property-sync-service/internal/core/port"
	"property-sync-service/internal/core/port/usecases_port"

	"github.com/go-chi/chi/v5"
)

type PropagationHandler struct {
	propagateUC usecases_port.PropagateProjectPort
}

func NewPropagationHandler(propagateUC usecases_port.PropagateProjectPort) *PropagationHandler {
	return &PropagationHandler{propagateUC: propagateUC}
}

// Propagate обрабатывает POST /api/v1/admin/projects/{projectID}/propagate.
// Выполняется синхронно; для больших проектов есть команда через RabbitMQ.
func (h *PropagationHandler) Propagate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID := domain.RecordID(chi.URLParam(r, "projectID"))

	logger := contextkeys.LoggerFromContext(ctx)
	handlerLogger := logger.WithFields(port.Fields{
		"handler":    "PropagateProject",
		"project_id": projectID,
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
	if err := contracts.Validate(contracts.PropagateProjectRequest, contracts.Version1, body); err != nil {
		handlerLogger.Warn("Request body failed schema validation", port.Fields{"error": err.Error()})
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req PropagateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	fields, err := domain.FieldValuesFromMap(req.Fields)
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.propagateUC.Propagate(ctx, domain.PropagateCommand{
		JobID:    contextkeys.TraceIDFromContext(ctx),
		ParentID: projectID,
		Fields:   fields,
		Actor:    actor,
	})
	if err != nil {
		respondWithDomainError(w, handlerLogger, err)
		return
	}

	RespondWithJSON(w, http.StatusOK, PropagateResponse{
		PropagationSummary: *summary,
		Message:            summary.Message(),
	})
}
