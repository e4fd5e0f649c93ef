package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/Skryldev/pereval/db"
	"github.com/Skryldev/pereval/models"
	"github.com/Skryldev/pereval/service"
)

// Messages returned verbatim to the mobile client.
const (
	msgSubmitted     = "Отправлено успешно"
	msgUpdated       = "Запись успешно обновлена"
	msgOK            = "Успешно"
	msgNotJSON       = "Запрос должен быть в формате JSON"
	msgEmailRequired = "Параметр user__email обязателен"
	msgConnection    = "Ошибка подключения к базе данных"
	msgPassNotFound  = "Перевал не найден"
	msgUserNotFound  = "Пользователь не найден"
	msgNoPasses      = "Перевалы не найдены"
	msgNotEditable   = "Редактирование запрещено: статус не 'new'"
	msgMissingFieldF = "Отсутствует поле: %s"
	msgBadFormatF    = "Ошибка: неверный формат поля %s"
	msgStoreErrorF   = "Ошибка: %v"
)

const (
	stateErr = 0
	stateOK  = 1

	// Images travel inline, so bodies can be large.
	maxBodyBytes = 32 << 20
)

// Handlers holds the dependencies of the HTTP handlers.
type Handlers struct {
	svc     PassService
	health  HealthChecker
	queries *db.QueryStats
}

// ─────────────────────────────────────────────────────────────────────────────
// Response envelopes
// ─────────────────────────────────────────────────────────────────────────────

type submitResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	ID      *int64 `json:"id"`
}

type passResponse struct {
	Status  int                  `json:"status"`
	Message string               `json:"message"`
	Data    *models.PassDocument `json:"data"`
}

type passListResponse struct {
	Status  int                   `json:"status"`
	Message string                `json:"message"`
	Data    []models.PassDocument `json:"data"`
}

type updateResponse struct {
	State   int    `json:"state"`
	Message string `json:"message"`
}

type healthResponse struct {
	Status  string                 `json:"status"`
	Error   string                 `json:"error,omitempty"`
	Pool    poolStats              `json:"pool"`
	Queries *db.QueryStatsSnapshot `json:"queries,omitempty"`
}

type poolStats struct {
	Open      int   `json:"open"`
	InUse     int   `json:"in_use"`
	Idle      int   `json:"idle"`
	WaitCount int64 `json:"wait_count"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// decodePass reads a JSON object body into a PassInput. Any failure means
// the body is not usable JSON.
func decodePass(r *http.Request) (*models.PassInput, error) {
	if !isJSON(r) {
		return nil, errors.New("content type is not JSON")
	}
	var in models.PassInput
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&in); err != nil {
		return nil, err
	}
	return &in, nil
}

// pathID parses the {id} route parameter. The route pattern only admits
// digits, so a failure here means the value overflows int64.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Error classification
// ─────────────────────────────────────────────────────────────────────────────

// message renders a service error for the client; notFound is the text used
// for ErrNotFound.
func message(err error, notFound string) string {
	var se *service.Error
	errors.As(err, &se)

	switch {
	case service.IsConnection(err):
		return msgConnection
	case service.IsValidation(err):
		return fmt.Sprintf(msgMissingFieldF, se.Field)
	case service.IsFormat(err):
		return fmt.Sprintf(msgBadFormatF, se.Field)
	case service.IsNotFound(err):
		return notFound
	case service.IsInvalidState(err):
		return msgNotEditable
	}
	if se != nil && se.Cause != nil {
		return fmt.Sprintf(msgStoreErrorF, se.Cause)
	}
	return fmt.Sprintf(msgStoreErrorF, err)
}

// status maps a service error to an HTTP status for the submit, get and list
// routes. Malformed values are a store-side failure there, not a client one.
func status(err error) int {
	switch {
	case service.IsValidation(err):
		return http.StatusBadRequest
	case service.IsNotFound(err):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// ─────────────────────────────────────────────────────────────────────────────
// Handlers
// ─────────────────────────────────────────────────────────────────────────────

// Submit handles POST /submitData.
func (h *Handlers) Submit(w http.ResponseWriter, r *http.Request) {
	in, err := decodePass(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, submitResponse{Status: http.StatusBadRequest, Message: msgNotJSON})
		return
	}

	id, err := h.svc.Submit(r.Context(), in)
	if err != nil {
		code := status(err)
		writeJSON(w, code, submitResponse{Status: code, Message: message(err, msgPassNotFound)})
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{Status: http.StatusOK, Message: msgSubmitted, ID: &id})
}

// GetByID handles GET /submitData/{id}.
func (h *Handlers) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, passResponse{Status: http.StatusNotFound, Message: msgPassNotFound})
		return
	}

	doc, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		code := status(err)
		writeJSON(w, code, passResponse{Status: code, Message: message(err, msgPassNotFound)})
		return
	}
	writeJSON(w, http.StatusOK, passResponse{Status: http.StatusOK, Message: msgOK, Data: doc})
}

// Update handles PATCH /submitData/{id}. Success is state 1 with HTTP 200;
// every failure is state 0 with HTTP 400.
func (h *Handlers) Update(w http.ResponseWriter, r *http.Request) {
	in, err := decodePass(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, updateResponse{State: stateErr, Message: msgNotJSON})
		return
	}
	id, ok := pathID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, updateResponse{State: stateErr, Message: msgPassNotFound})
		return
	}

	if err := h.svc.Update(r.Context(), id, in); err != nil {
		writeJSON(w, http.StatusBadRequest, updateResponse{State: stateErr, Message: message(err, msgPassNotFound)})
		return
	}
	writeJSON(w, http.StatusOK, updateResponse{State: stateOK, Message: msgUpdated})
}

// ListByEmail handles GET /submitData/?user__email=….
func (h *Handlers) ListByEmail(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("user__email")
	if email == "" {
		writeJSON(w, http.StatusBadRequest, passListResponse{Status: http.StatusBadRequest, Message: msgEmailRequired})
		return
	}

	docs, err := h.svc.ListByEmail(r.Context(), email)
	if err != nil {
		notFound := msgNoPasses
		if db.IsNotFound(err) {
			notFound = msgUserNotFound
		}
		code := status(err)
		writeJSON(w, code, passListResponse{Status: code, Message: message(err, notFound)})
		return
	}
	writeJSON(w, http.StatusOK, passListResponse{Status: http.StatusOK, Message: msgOK, Data: docs})
}

// Health handles GET /healthz.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	stats := h.health.Stats()
	resp := healthResponse{
		Status: "ok",
		Pool: poolStats{
			Open:      stats.OpenConnections,
			InUse:     stats.InUse,
			Idle:      stats.Idle,
			WaitCount: stats.WaitCount,
		},
	}
	if h.queries != nil {
		snap := h.queries.Snapshot()
		resp.Queries = &snap
	}

	code := http.StatusOK
	if err := h.health.Ping(r.Context()); err != nil {
		resp.Status = "unavailable"
		resp.Error = err.Error()
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}
