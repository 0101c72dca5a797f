package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"winsync/internal/list"
	"winsync/internal/types"
)

type Handler struct {
	Lists *list.Registry
	Open  ListOpener
}

func NewHandler(lists *list.Registry, open ListOpener) *Handler {
	return &Handler{Lists: lists, Open: open}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /lists", h.handleIndex)
	mux.HandleFunc("GET /lists/{id}", h.handleStatus)
	mux.HandleFunc("GET /lists/{id}/template", h.handleTemplate)
	mux.HandleFunc("POST /lists/{id}/range", h.eventHandler(types.EventRange))
	mux.HandleFunc("POST /lists/{id}/ack", h.eventHandler(types.EventAck))
	mux.HandleFunc("POST /lists/{id}/refresh", h.eventHandler(types.EventRefresh))
	mux.HandleFunc("POST /lists/{id}/bind", h.eventHandler(types.EventBind))
	mux.HandleFunc("GET /ws/{id}", h.handleWS)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*list.List, bool) {
	l, err := h.Lists.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return l, true
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	if err := writeJSON(w, http.StatusOK, map[string]any{"lists": h.Lists.IDs()}); err != nil {
		http.Error(w, "failed to write response", http.StatusInternalServerError)
	}
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	l, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := writeJSON(w, http.StatusOK, l.Status()); err != nil {
		http.Error(w, "failed to write response", http.StatusInternalServerError)
	}
}

func (h *Handler) handleTemplate(w http.ResponseWriter, r *http.Request) {
	l, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := writeJSON(w, http.StatusOK, map[string]any{"template": l.Template()}); err != nil {
		http.Error(w, "failed to write response", http.StatusInternalServerError)
	}
}

// eventHandler decodes the body as a list event of the given type and applies it.
func (h *Handler) eventHandler(eventType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, ok := h.lookup(w, r)
		if !ok {
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			http.Error(w, "read error", http.StatusBadRequest)
			return
		}
		defer func() {
			_ = r.Body.Close()
		}()
		var ev types.ListEvent
		if len(body) > 0 {
			if err := json.Unmarshal(body, &ev); err != nil {
				http.Error(w, "invalid json", http.StatusBadRequest)
				return
			}
		}
		ev.ListID = l.ID()
		ev.Type = eventType

		res, err := Apply(r.Context(), l, ev)
		if err != nil {
			writeError(w, err)
			return
		}
		if res.Stale {
			_ = writeJSON(w, http.StatusConflict, staleReply{Result: res, Error: types.ErrStaleAcknowledgment.Error()})
			return
		}
		if err := writeJSON(w, http.StatusAccepted, res); err != nil {
			http.Error(w, "failed to write response", http.StatusInternalServerError)
		}
	}
}

type staleReply struct {
	Result
	Error string `json:"error"`
}

// statusFor maps typed errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidRange), errors.Is(err, types.ErrInvalidEvent):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrProviderFailure), errors.Is(err, types.ErrTransportFailure):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		log.WithError(err).Error("request failed")
	}
	if werr := writeJSON(w, code, map[string]any{"error": err.Error()}); werr != nil {
		http.Error(w, "failed to write response", http.StatusInternalServerError)
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}
