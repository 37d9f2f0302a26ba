package rest

import (
	"net/http"

	"property-sync-service/internal/contextkeys"
	"property-sync-service/internal/core/domain"
	"property-sync-service/internal/core/port"
	"property-sync-service/internal/core/port/usecases_port"

	"github.com/go-chi/chi/v5"
)

// Catalogs - справочники для разделения amenities/equipment в ответе
type Catalogs struct {
	Amenities []string
	Equipment []string
}

type RecordHandler struct {
	getRecordUC usecases_port.GetRecordPort
	catalogs    Catalogs
}

func NewRecordHandler(getRecordUC usecases_port.GetRecordPort, catalogs Catalogs) *RecordHandler {
	return &RecordHandler{
		getRecordUC: getRecordUC,
		catalogs:    catalogs,
	}
}

// GetRecord обрабатывает GET /api/v1/records/{recordID}
func (h *RecordHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	recordID := domain.RecordID(chi.URLParam(r, "recordID"))

	logger := contextkeys.LoggerFromContext(r.Context())
	handlerLogger := logger.WithFields(port.Fields{
		"handler":   "GetRecord",
		"record_id": recordID,
	})

	rec, err := h.getRecordUC.GetRecord(r.Context(), recordID)
	if err != nil {
		respondWithDomainError(w, handlerLogger, err)
		return
	}

	// журнал отдается отдельной ручкой с пагинацией
	out := rec.Clone()
	out.AuditLog = nil

	RespondWithJSON(w, http.StatusOK, RecordResponse{
		Record:    out,
		Amenities: newCollectionView(h.catalogs.Amenities, out.Amenities),
		Equipment: newCollectionView(h.catalogs.Equipment, out.Equipment),
	})
}

// GetAuditLog обрабатывает GET /api/v1/records/{recordID}/audit?limit=&offset=
func (h *RecordHandler) GetAuditLog(w http.ResponseWriter, r *http.Request) {
	recordID := domain.RecordID(chi.URLParam(r, "recordID"))

	logger := contextkeys.LoggerFromContext(r.Context())
	handlerLogger := logger.WithFields(port.Fields{
		"handler":   "GetAuditLog",
		"record_id": recordID,
	})

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.getRecordUC.GetAuditLog(r.Context(), recordID, limit, offset)
	if err != nil {
		respondWithDomainError(w, handlerLogger, err)
		return
	}

	RespondWithJSON(w, http.StatusOK, AuditLogResponse{
		RecordID: recordID,
		Limit:    limit,
		Offset:   offset,
		Entries:  entries,
	})
}
