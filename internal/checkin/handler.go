package checkin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ibaifernandez/gymtracker/internal/importcsv"
	"github.com/ibaifernandez/gymtracker/internal/telemetry/metrics"
	"github.com/ibaifernandez/gymtracker/internal/telemetry/tracing"
	"github.com/ibaifernandez/gymtracker/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const maxImportFileSize = 8 << 20 // 8 MiB, personal-scale files

type checkinRepo interface {
	Upsert(ctx context.Context, c CheckIn) error
	Exists(ctx context.Context, logDate string) (bool, error)
	Delete(ctx context.Context, logDate string) error
}

type checkinImporter interface {
	Preview(ctx context.Context, text string) (*PreviewResult, error)
	Apply(ctx context.Context, rows []ApplyRow) (*ApplyResult, error)
}

type Handler struct {
	repo           checkinRepo
	importer       checkinImporter
	metricsManager *metrics.Manager
}

func NewHandler(repo checkinRepo, importer checkinImporter, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		repo:           repo,
		importer:       importer,
		metricsManager: metricsManager,
	}
}

type upsertRequest struct {
	CheckIn
	EntryMode string `json:"entry_mode"`
}

func (handler *Handler) HandleUpsert(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.checkin.upsert")
	defer span.End()

	var req upsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("upsert check-in, unmarshal json params: %s", err)
		pkg.WriteAPIError(w, "cuerpo JSON invalido", http.StatusBadRequest)
		return
	}

	req.LogDate = strings.TrimSpace(req.LogDate)
	if !pkg.ValidISODate(req.LogDate) {
		pkg.WriteAPIError(w, "log_date invalida", http.StatusBadRequest)
		return
	}
	if req.AlcoholUnits < 0 {
		pkg.WriteAPIError(w, "alcohol_units no puede ser negativo", http.StatusBadRequest)
		return
	}
	if req.CreatineYN != nil {
		yn := importcsv.YNOrEmpty(*req.CreatineYN)
		if yn == "" {
			pkg.WriteAPIError(w, "creatine_yn debe ser Y o N", http.StatusBadRequest)
			return
		}
		req.CreatineYN = &yn
	}

	mode := strings.ToLower(strings.TrimSpace(req.EntryMode))
	if mode != "create" && mode != "edit" {
		mode = "upsert"
	}

	exists, err := handler.repo.Exists(ctx, req.LogDate)
	if err != nil {
		log.Errorf("upsert check-in [%s], exists check: %s", req.LogDate, err)
		pkg.WriteAPIError(w, "error interno", http.StatusInternalServerError)
		return
	}

	if mode == "create" && exists {
		resp, _ := json.Marshal(struct {
			OK        bool   `json:"ok"`
			NeedsEdit bool   `json:"needs_edit"`
			LogDate   string `json:"log_date"`
			Message   string `json:"message"`
		}{false, true, req.LogDate, "Ese dia ya existe. Si quieres cambiarlo, editalo desde la tabla."})
		pkg.WriteResponseBytes(w, pkg.ContentType.JSON, resp, http.StatusConflict)
		return
	}
	if mode == "edit" && !exists {
		pkg.WriteAPIError(w, "Registro de check-in no encontrado.", http.StatusNotFound)
		return
	}

	if err := handler.repo.Upsert(ctx, req.CheckIn); err != nil {
		log.Errorf("upsert check-in [%s]: %s", req.LogDate, err)
		pkg.WriteAPIError(w, "error interno", http.StatusInternalServerError)
		return
	}

	resp, _ := json.Marshal(struct {
		OK      bool   `json:"ok"`
		LogDate string `json:"log_date"`
	}{true, req.LogDate})
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, resp)
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.checkin.delete")
	defer span.End()

	logDate := strings.TrimSpace(mux.Vars(r)["date"])
	if !pkg.ValidISODate(logDate) {
		pkg.WriteAPIError(w, "log_date invalida", http.StatusBadRequest)
		return
	}

	switch err := handler.repo.Delete(ctx, logDate); {
	case errors.Is(err, ErrCheckinNotFound):
		pkg.WriteAPIError(w, "Registro de check-in no encontrado.", http.StatusNotFound)
		return
	case err != nil:
		log.Errorf("delete check-in [%s]: %s", logDate, err)
		pkg.WriteAPIError(w, "error interno", http.StatusInternalServerError)
		return
	}

	resp, _ := json.Marshal(struct {
		OK      bool   `json:"ok"`
		LogDate string `json:"log_date"`
	}{true, logDate})
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, resp)
}

func (handler *Handler) HandleImportPreview(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.checkin.import.preview")
	defer span.End()

	text, ok := pkg.ReadCSVUpload(w, r, maxImportFileSize)
	if !ok {
		return
	}

	result, err := handler.importer.Preview(ctx, text)
	if err != nil {
		pkg.WriteAPIError(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := json.Marshal(struct {
		OK              bool           `json:"ok"`
		Summary         PreviewSummary `json:"summary"`
		Preview         []RowResult    `json:"preview"`
		AcceptedColumns []string       `json:"accepted_columns"`
	}{true, result.Summary, result.Preview, TemplateColumns})
	if err != nil {
		log.Errorf("marshal check-in import preview: %s", err)
		pkg.WriteAPIError(w, "error interno", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, resp)
}

func (handler *Handler) HandleImportApply(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.checkin.import.apply")
	defer span.End()

	var req struct {
		Rows []ApplyRow `json:"rows"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.WriteAPIError(w, "cuerpo JSON invalido", http.StatusBadRequest)
		return
	}
	if len(req.Rows) == 0 {
		pkg.WriteAPIError(w, "No hay filas para importar.", http.StatusBadRequest)
		return
	}

	result, err := handler.importer.Apply(ctx, req.Rows)
	if err != nil {
		log.Errorf("check-in import apply: %s", err)
		pkg.WriteAPIError(w, "error interno", http.StatusInternalServerError)
		return
	}

	handler.metricsManager.CounterCheckinRowsImported.Add(float64(result.Summary.Imported))
	handler.metricsManager.CounterImportRowsRejected.Add(float64(result.Summary.Invalid + result.Summary.Conflict))

	resp, err := json.Marshal(struct {
		OK      bool         `json:"ok"`
		Summary ApplySummary `json:"summary"`
		Results []RowResult  `json:"results"`
	}{true, result.Summary, result.Results})
	if err != nil {
		log.Errorf("marshal check-in import apply: %s", err)
		pkg.WriteAPIError(w, "error interno", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, resp)
}
