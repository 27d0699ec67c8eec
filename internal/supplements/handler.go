package supplements

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ibaifernandez/gymtracker/internal/importcsv"
	"github.com/ibaifernandez/gymtracker/internal/telemetry/tracing"
	"github.com/ibaifernandez/gymtracker/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type catalogRepo interface {
	CreateSupplement(ctx context.Context, s Supplement) (*Supplement, error)
	UpdateSupplement(ctx context.Context, s Supplement) (*Supplement, error)
	FindByName(ctx context.Context, name string, excludeID int) (*Supplement, error)
	DeleteSupplement(ctx context.Context, supplementID int) (string, error)
	ListCatalog(ctx context.Context, includeInactive bool) ([]Supplement, error)
	Day(ctx context.Context, logDate string) (*Day, error)
	ReplaceDay(ctx context.Context, logDate string, entries []LogEntry) error
	DeleteDay(ctx context.Context, logDate string) (int, error)
}

type historyService interface {
	History(ctx context.Context, days int) ([]HistoryItem, error)
}

type Handler struct {
	repo    catalogRepo
	service historyService
}

func NewHandler(repo catalogRepo, service historyService) *Handler {
	return &Handler{
		repo:    repo,
		service: service,
	}
}

func (handler *Handler) HandleCatalogGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.supplements.catalog.get")
	defer span.End()

	includeInactive := !truthy(r.URL.Query().Get("active_only"))
	catalog, err := handler.repo.ListCatalog(ctx, includeInactive)
	if err != nil {
		log.Errorf("list supplement catalog: %s", err)
		pkg.WriteAPIError(w, "error interno", http.StatusInternalServerError)
		return
	}
	if catalog == nil {
		catalog = []Supplement{}
	}

	resp, _ := json.Marshal(struct {
		OK          bool         `json:"ok"`
		Supplements []Supplement `json:"supplements"`
	}{true, catalog})
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, resp)
}

type catalogSaveRequest struct {
	SupplementID int    `json:"supplement_id"`
	Name         string `json:"name"`
	DosesPerDay  *int   `json:"doses_per_day"`
	ActiveYN     string `json:"active_yn"`
	Notes        string `json:"notes"`
}

func (handler *Handler) HandleCatalogSave(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.supplements.catalog.save")
	defer span.End()

	var req catalogSaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("save supplement, unmarshal json params: %s", err)
		pkg.WriteAPIError(w, "cuerpo JSON invalido", http.StatusBadRequest)
		return
	}

	name := NormalizeName(req.Name)
	if name == "" {
		pkg.WriteAPIError(w, "Nombre de suplemento requerido.", http.StatusBadRequest)
		return
	}
	if req.DosesPerDay == nil {
		pkg.WriteAPIError(w, "Define cuantas tomas al dia (numero entero).", http.StatusBadRequest)
		return
	}
	if *req.DosesPerDay < minDosesPerDay || *req.DosesPerDay > maxDosesPerDay {
		pkg.WriteAPIError(w, "Las tomas por dia deben estar entre 1 y 12.", http.StatusBadRequest)
		return
	}
	activeYN := importcsv.YNOrEmpty(req.ActiveYN)
	if activeYN == "" {
		activeYN = "Y"
	}

	conflict, err := handler.repo.FindByName(ctx, name, req.SupplementID)
	if err != nil {
		log.Errorf("save supplement, name check: %s", err)
		pkg.WriteAPIError(w, "error interno", http.StatusInternalServerError)
		return
	}
	if conflict != nil {
		pkg.WriteAPIError(w, "Ya existe un suplemento con ese nombre.", http.StatusConflict)
		return
	}

	supplement := Supplement{
		SupplementID: req.SupplementID,
		Name:         name,
		DosesPerDay:  *req.DosesPerDay,
		ActiveYN:     activeYN,
		Notes:        pkg.ClipText(req.Notes, notesMaxLen),
	}

	var saved *Supplement
	mode := "create"
	if req.SupplementID > 0 {
		mode = "edit"
		saved, err = handler.repo.UpdateSupplement(ctx, supplement)
	} else {
		saved, err = handler.repo.CreateSupplement(ctx, supplement)
	}
	switch {
	case errors.Is(err, ErrSupplementNotFound):
		pkg.WriteAPIError(w, "Suplemento no encontrado.", http.StatusNotFound)
		return
	case errors.Is(err, ErrNameConflict):
		pkg.WriteAPIError(w, "Ya existe un suplemento con ese nombre.", http.StatusConflict)
		return
	case err != nil:
		log.Errorf("save supplement [%s]: %s", name, err)
		pkg.WriteAPIError(w, "error interno", http.StatusInternalServerError)
		return
	}

	resp, _ := json.Marshal(struct {
		OK         bool       `json:"ok"`
		EntryMode  string     `json:"entry_mode"`
		Supplement Supplement `json:"supplement"`
	}{true, mode, *saved})
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, resp)
}

func (handler *Handler) HandleCatalogDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.supplements.catalog.delete")
	defer span.End()

	supplementID, err := strconv.Atoi(mux.Vars(r)["supplementID"])
	if err != nil || supplementID <= 0 {
		pkg.WriteAPIError(w, "supplement_id invalido", http.StatusBadRequest)
		return
	}

	name, err := handler.repo.DeleteSupplement(ctx, supplementID)
	switch {
	case errors.Is(err, ErrSupplementNotFound):
		pkg.WriteAPIError(w, "Suplemento no encontrado.", http.StatusNotFound)
		return
	case err != nil:
		log.Errorf("delete supplement [%d]: %s", supplementID, err)
		pkg.WriteAPIError(w, "error interno", http.StatusInternalServerError)
		return
	}

	resp, _ := json.Marshal(struct {
		OK           bool   `json:"ok"`
		SupplementID int    `json:"supplement_id"`
		Name         string `json:"name"`
	}{true, supplementID, name})
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, resp)
}

type dayResponse struct {
	OK bool `json:"ok"`
	*Day
}

func (handler *Handler) HandleDayGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.supplements.day.get")
	defer span.End()

	logDate := strings.TrimSpace(r.URL.Query().Get("log_date"))
	if logDate == "" {
		logDate = pkg.FormatISODate(time.Now())
	}
	if !pkg.ValidISODate(logDate) {
		pkg.WriteAPIError(w, "log_date invalida", http.StatusBadRequest)
		return
	}

	handler.writeDay(ctx, w, logDate)
}

type dayEntryPayload struct {
	SupplementID *int   `json:"supplement_id"`
	DosesTaken   *int   `json:"doses_taken"`
	Notes        string `json:"notes"`
}

type daySaveRequest struct {
	LogDate string            `json:"log_date"`
	Entries []dayEntryPayload `json:"entries"`
}

func (handler *Handler) HandleDaySave(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.supplements.day.save")
	defer span.End()

	var req daySaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("save supplement day, unmarshal json params: %s", err)
		pkg.WriteAPIError(w, "cuerpo JSON invalido", http.StatusBadRequest)
		return
	}

	logDate := strings.TrimSpace(req.LogDate)
	if !pkg.ValidISODate(logDate) {
		pkg.WriteAPIError(w, "log_date invalida", http.StatusBadRequest)
		return
	}

	entries := make([]LogEntry, 0, len(req.Entries))
	seen := map[int]bool{}
	for _, item := range req.Entries {
		if item.SupplementID == nil || *item.SupplementID < 1 {
			pkg.WriteAPIError(w, "supplement_id invalido en entries.", http.StatusBadRequest)
			return
		}
		if seen[*item.SupplementID] {
			pkg.WriteAPIError(w, "Hay suplementos repetidos en entries.", http.StatusBadRequest)
			return
		}
		seen[*item.SupplementID] = true

		dosesTaken := 0
		if item.DosesTaken != nil {
			dosesTaken = *item.DosesTaken
		}
		if dosesTaken < 0 || dosesTaken > maxDosesTaken {
			pkg.WriteAPIError(w, "doses_taken debe estar entre 0 y 24.", http.StatusBadRequest)
			return
		}

		entries = append(entries, LogEntry{
			SupplementID: *item.SupplementID,
			DosesTaken:   dosesTaken,
			Notes:        pkg.ClipText(item.Notes, notesMaxLen),
		})
	}

	err := handler.repo.ReplaceDay(ctx, logDate, entries)
	var unknown *UnknownSupplementError
	switch {
	case errors.As(err, &unknown):
		pkg.WriteAPIError(w, fmt.Sprintf("Suplemento no encontrado (ID %d).", unknown.SupplementID), http.StatusNotFound)
		return
	case err != nil:
		log.Errorf("replace supplement day [%s]: %s", logDate, err)
		pkg.WriteAPIError(w, "error interno", http.StatusInternalServerError)
		return
	}

	handler.writeDay(ctx, w, logDate)
}

func (handler *Handler) HandleDayDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.supplements.day.delete")
	defer span.End()

	logDate := strings.TrimSpace(mux.Vars(r)["date"])
	if !pkg.ValidISODate(logDate) {
		pkg.WriteAPIError(w, "log_date invalida", http.StatusBadRequest)
		return
	}

	deleted, err := handler.repo.DeleteDay(ctx, logDate)
	switch {
	case errors.Is(err, ErrDayLogNotFound):
		pkg.WriteAPIError(w, "No hay registro para esa fecha.", http.StatusNotFound)
		return
	case err != nil:
		log.Errorf("delete supplement day [%s]: %s", logDate, err)
		pkg.WriteAPIError(w, "error interno", http.StatusInternalServerError)
		return
	}

	resp, _ := json.Marshal(struct {
		OK          bool   `json:"ok"`
		LogDate     string `json:"log_date"`
		DeletedRows int    `json:"deleted_rows"`
	}{true, logDate, deleted})
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, resp)
}

func (handler *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.supplements.history")
	defer span.End()

	limitParam := strings.TrimSpace(r.URL.Query().Get("limit"))
	limit := 15
	if limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil || parsed < 1 {
			pkg.WriteAPIError(w, "limit invalido", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	items, err := handler.service.History(ctx, limit)
	if err != nil {
		log.Errorf("supplement history: %s", err)
		pkg.WriteAPIError(w, "error interno", http.StatusInternalServerError)
		return
	}

	resp, _ := json.Marshal(struct {
		OK    bool          `json:"ok"`
		Limit int           `json:"limit"`
		Rows  []HistoryItem `json:"rows"`
	}{true, limit, items})
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, resp)
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}

func (handler *Handler) writeDay(ctx context.Context, w http.ResponseWriter, logDate string) {
	day, err := handler.repo.Day(ctx, logDate)
	if err != nil {
		log.Errorf("fetch supplement day [%s]: %s", logDate, err)
		pkg.WriteAPIError(w, "error interno", http.StatusInternalServerError)
		return
	}

	resp, err := json.Marshal(dayResponse{OK: true, Day: day})
	if err != nil {
		log.Errorf("marshal supplement day: %s", err)
		pkg.WriteAPIError(w, "error interno", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, resp)
}
