package admin

import (
	"encoding/json"
	"net/http"

	"github.com/maxpert/eventwire/notify"
	"github.com/maxpert/eventwire/wire"
	"github.com/rs/zerolog/log"
)

// maxPublishBody caps the payload accepted by the publish endpoint
const maxPublishBody = 1 << 20

// AdminHandlers serves inspection endpoints for a dispatcher
type AdminHandlers struct {
	wire *wire.Wire
	hub  *notify.Hub
}

// NewAdminHandlers creates a new AdminHandlers instance. hub may be nil.
func NewAdminHandlers(w *wire.Wire, hub *notify.Hub) *AdminHandlers {
	return &AdminHandlers{
		wire: w,
		hub:  hub,
	}
}

// writeJSONResponse writes a successful JSON response
func writeJSONResponse(w http.ResponseWriter, data interface{}) {
	response := map[string]interface{}{
		"data": data,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error JSON response
func writeErrorResponse(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	response := map[string]interface{}{
		"error": message,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Error().Err(err).Msg("Failed to encode error response")
	}
}
