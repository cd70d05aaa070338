package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/handsomefox/movie-taste/internal/logger"
	"github.com/handsomefox/movie-taste/internal/models"
)

type HandlerWithErr func(w http.ResponseWriter, r *http.Request) error

type Error struct {
	Status  int
	Message string
}

func (e Error) Error() string {
	return e.Message + " code=" + strconv.FormatInt(int64(e.Status), 10)
}

type errorResponse struct {
	Error string `json:"error"`
}

// Adapt turns a HandlerWithErr into an http.Handler. Validation failures map
// to 400, discarded stale results to 409, transport failures to 502 and
// anything unrecognised to 500.
func Adapt(h HandlerWithErr) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := h(w, r)
		if err == nil {
			return
		}

		var statusErr *Error
		var verr *models.ValidationError
		var serr *models.StaleError
		var terr *models.TransportError
		switch {
		case errors.As(err, &statusErr):
			writeJSON(w, statusErr.Status, &errorResponse{Error: statusErr.Message})
		case errors.As(err, &verr):
			writeJSON(w, http.StatusBadRequest, &errorResponse{Error: verr.Reason})
		case errors.As(err, &serr):
			writeJSON(w, http.StatusConflict, &errorResponse{Error: serr.Reason})
		case errors.As(err, &terr):
			writeJSON(w, http.StatusBadGateway, &errorResponse{Error: terr.Op + " failed, please try again"})
		default:
			slog.Error("unhandled error", slog.String("path", r.URL.Path), logger.Error(err))
			writeJSON(w, http.StatusInternalServerError, &errorResponse{Error: "internal error"})
		}
	})
}
