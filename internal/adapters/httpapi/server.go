// Package httpapi exposes the drop-in engine over JSON/HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/royalclubcanada/dropin/internal/application"
	"github.com/royalclubcanada/dropin/internal/domain"
	"github.com/royalclubcanada/dropin/internal/logging"
	"github.com/sirupsen/logrus"
)

// Engine is the part of application.Engine the API needs.
type Engine interface {
	CreateSession(ctx context.Context, window domain.Window, capacity int) (domain.SessionView, error)
	Join(ctx context.Context, id domain.SessionID, member domain.Member) (application.JoinResult, error)
	Leave(ctx context.Context, id domain.SessionID, memberID domain.MemberID) (domain.SessionView, error)
	GetSession(id domain.SessionID) (domain.SessionView, error)
	ListSessions() []domain.SessionView
}

type Options struct {
	Location       *time.Location
	RateLimit      float64
	Burst          int
	MetricsHandler http.Handler
	Logger         logrus.FieldLogger
}

type handler struct {
	engine   Engine
	location *time.Location
	logger   logrus.FieldLogger
}

// NewHandler builds the router. A zero RateLimit disables rate limiting.
func NewHandler(engine Engine, opts Options) http.Handler {
	logger := logging.OrDiscard(opts.Logger)
	location := opts.Location
	if location == nil {
		location = time.Local
	}
	h := &handler{engine: engine, location: location, logger: logger}

	router := mux.NewRouter()
	router.Use(loggingMiddleware(logger))

	router.HandleFunc("/healthz", h.handleHealth).Methods(http.MethodGet)
	if opts.MetricsHandler != nil {
		router.Handle("/metrics", opts.MetricsHandler).Methods(http.MethodGet)
	}

	api := router.PathPrefix("/sessions").Subrouter()
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		api.Use(newRateLimiter(opts.RateLimit, burst, logger).middleware)
	}
	api.HandleFunc("", h.handleListSessions).Methods(http.MethodGet)
	api.HandleFunc("", h.handleCreateSession).Methods(http.MethodPost)
	api.HandleFunc("/{id}", h.handleGetSession).Methods(http.MethodGet)
	api.HandleFunc("/{id}/members", h.handleJoin).Methods(http.MethodPost)
	api.HandleFunc("/{id}/members/{memberID}", h.handleLeave).Methods(http.MethodDelete)

	return router
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	statusFilter := r.URL.Query().Get("status")
	var want domain.Status
	if statusFilter != "" {
		parsed, err := domain.ParseStatus(statusFilter)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		want = parsed
	}

	views := h.engine.ListSessions()
	result := make([]sessionResponse, 0, len(views))
	for _, view := range views {
		if want != "" && view.Status != want {
			continue
		}
		result = append(result, toSessionResponse(view))
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var input createSessionRequest
	if !decodeJSON(w, r, &input) {
		return
	}

	window, err := input.window(h.location)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.engine.CreateSession(r.Context(), window, input.Capacity)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Location", "/sessions/"+string(view.ID))
	writeJSON(w, http.StatusCreated, toSessionResponse(view))
}

func (h *handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.engine.GetSession(domain.SessionID(mux.Vars(r)["id"]))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(view))
}

func (h *handler) handleJoin(w http.ResponseWriter, r *http.Request) {
	var input joinRequest
	if !decodeJSON(w, r, &input) {
		return
	}

	result, err := h.engine.Join(r.Context(), domain.SessionID(mux.Vars(r)["id"]), domain.Member{
		ID:          domain.MemberID(input.ID),
		DisplayName: input.DisplayName,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, joinResponse{
		Session:    toSessionResponse(result.Session),
		Member:     toMemberResponse(result.Member),
		JustFilled: result.JustFilled,
	})
}

func (h *handler) handleLeave(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	view, err := h.engine.Leave(r.Context(), domain.SessionID(vars["id"]), domain.MemberID(vars["memberID"]))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(view))
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		h.logger.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}
