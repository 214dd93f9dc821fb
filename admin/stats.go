package admin

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/maxpert/eventwire/wire"
)

// handleStats returns every registered channel with its live listeners
func (h *AdminHandlers) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := h.wire.Stat()

	if prefix := r.URL.Query().Get("prefix"); prefix != "" {
		filtered := stats[:0]
		for _, s := range stats {
			if strings.HasPrefix(s.Name, prefix) {
				filtered = append(filtered, s)
			}
		}
		stats = filtered
	}

	writeJSONResponse(w, stats)
}

// handleHealth reports registry size and tap count
func (h *AdminHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	total, live := h.wire.Size()

	taps := 0
	if h.hub != nil {
		taps = h.hub.Len()
	}

	response := map[string]interface{}{
		"healthy":             true,
		"registered_handlers": total,
		"live_handlers":       live,
		"taps":                taps,
	}

	writeJSONResponse(w, response)
}

// handleChannel resolves a concrete channel
func (h *AdminHandlers) handleChannel(w http.ResponseWriter, r *http.Request) {
	channel := chi.URLParam(r, "channel")
	if channel == "" {
		writeErrorResponse(w, http.StatusBadRequest, "channel name is required")
		return
	}

	response := map[string]interface{}{
		"channel":   channel,
		"has":       h.wire.Has(channel),
		"listeners": h.wire.Listeners(channel),
	}

	writeJSONResponse(w, response)
}

// handlePublish emits the request body as a string payload on the channel
func (h *AdminHandlers) handlePublish(w http.ResponseWriter, r *http.Request) {
	channel := chi.URLParam(r, "channel")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPublishBody))
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "failed to read body")
		return
	}

	err = h.wire.Emit(r.Context(), channel, string(body))

	// Handler failures may wrap a ValidationError of their own
	var herr *wire.HandlerError
	var verr *wire.ValidationError
	switch {
	case errors.As(err, &herr):
		writeErrorResponse(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &verr):
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
	case err != nil:
		writeErrorResponse(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeJSONResponse(w, map[string]interface{}{
			"channel":   channel,
			"published": true,
		})
	}
}
