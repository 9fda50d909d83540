// internal/handlers/respond.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/pokerdice/internal/game"
	"github.com/sirupsen/logrus"
)

// errorBody is the JSON shape of every failed request.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	// Result is set when an operation applied a change and still reports a failure,
	// e.g. a reroll that finished the turn.
	Result any `json:"result,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Warn("failed to encode response")
	}
}

// writeError maps err through game.Classify. Internal errors are logged and their
// text is not exposed.
func (api *API) writeError(w http.ResponseWriter, r *http.Request, err error, result any) {
	code, status := game.Classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		api.Logger.WithFields(logrus.Fields{"path": r.URL.Path, "error": err}).Error("request failed")
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: code, Message: msg, Result: result})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Message: msg})
}

// pathID parses a uuid URL parameter, writing a 400 if it is malformed.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		badRequest(w, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
