package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/mailru/easyjson"

	"github.com/angeloszaimis/uptime-tracker/internal/definitions"
	"github.com/angeloszaimis/uptime-tracker/internal/service"
	"github.com/angeloszaimis/uptime-tracker/internal/state"
)

const (
	// ListTimeout bounds how long GET /api/servicelist waits for the first cycle.
	ListTimeout = 5 * time.Second

	retryAfter   = "5"
	maxBodyBytes = 1 << 20
)

// SnapshotWaiter is the read side of the state store.
type SnapshotWaiter interface {
	WaitSnapshot(ctx context.Context) ([]service.Record, error)
}

// DefinitionStore is the write side of the definitions table.
type DefinitionStore interface {
	Insert(ctx context.Context, def definitions.Definition) error
	Upsert(ctx context.Context, def definitions.Definition) error
	Delete(ctx context.Context, name string) error
}

type Reloader interface {
	SignalReload()
}

type APIOption func(*API)

// WithListTimeout overrides ListTimeout.
func WithListTimeout(d time.Duration) APIOption {
	return func(a *API) {
		a.listTimeout = d
	}
}

type API struct {
	logger      *slog.Logger
	states      SnapshotWaiter
	defs        DefinitionStore
	reloader    Reloader
	listTimeout time.Duration
}

func NewAPI(logger *slog.Logger, states SnapshotWaiter, defs DefinitionStore, reloader Reloader, opts ...APIOption) *API {
	a := &API{
		logger:      logger,
		states:      states,
		defs:        defs,
		reloader:    reloader,
		listTimeout: ListTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Register mounts the API routes on mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/servicelist", a.ListServices)
	mux.HandleFunc("POST /api/servicelist", a.InsertService)
	mux.HandleFunc("PUT /api/servicelist", a.UpsertService)
	mux.HandleFunc("DELETE /api/servicelist", a.DeleteService)
	mux.HandleFunc("GET /api/live", a.Live)
}

// ListServices writes the current snapshot, up services first then by name.
// Before the first cycle has committed it waits up to the list timeout and then
// answers 503.
func (a *API) ListServices(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), a.listTimeout)
	defer cancel()

	records, err := a.states.WaitSnapshot(ctx)
	if err != nil {
		if errors.Is(err, state.ErrNotReady) {
			w.Header().Set("Retry-After", retryAfter)
			http.Error(w, "service list not ready", http.StatusServiceUnavailable)
			return
		}
		a.logger.Error("Failed to read service list", slog.Any("err", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if _, _, err := easyjson.MarshalToHTTPResponseWriter(service.SortedViews(records), w); err != nil {
		a.logger.Debug("Failed to write service list", slog.Any("err", err))
	}
}

func (a *API) InsertService(w http.ResponseWriter, r *http.Request) {
	a.write(w, r, a.defs.Insert, http.StatusCreated)
}

func (a *API) UpsertService(w http.ResponseWriter, r *http.Request) {
	a.write(w, r, a.defs.Upsert, http.StatusOK)
}

func (a *API) write(w http.ResponseWriter, r *http.Request, store func(context.Context, definitions.Definition) error, status int) {
	var def definitions.Definition
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&def); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	// API rows are never touched by the file sync.
	def.ConfigHash = ""

	if err := def.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := store(r.Context(), def); err != nil {
		var verrs validation.Errors
		switch {
		case errors.Is(err, definitions.ErrDuplicate):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.As(err, &verrs):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			a.logger.Error("Failed to store service",
				slog.String("service", def.Name),
				slog.Any("err", err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	a.logger.Info("Service definition stored",
		slog.String("service", def.Name),
		slog.String("method", r.Method))
	a.reloader.SignalReload()

	writeJSON(w, status, def)
}

func (a *API) DeleteService(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	if err := a.defs.Delete(r.Context(), name); err != nil {
		if errors.Is(err, definitions.ErrNotFound) {
			http.Error(w, "service not found", http.StatusNotFound)
			return
		}
		a.logger.Error("Failed to delete service",
			slog.String("service", name),
			slog.Any("err", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	a.logger.Info("Service definition deleted", slog.String("service", name))
	a.reloader.SignalReload()
	w.WriteHeader(http.StatusNoContent)
}

// Live always answers true while the process serves requests.
func (a *API) Live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, true)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
