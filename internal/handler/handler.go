package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"shop-core/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but don't expose it to the client
		return
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string, logger zerolog.Logger) {
	logger.Error().Str("code", code).Str("error", message).Int("status", status).Msg("handler error")
	writeJSON(w, status, model.ErrorResponse{Error: code, Message: message})
}

// writeDomainError maps the service error taxonomy onto HTTP statuses.
// Validation failures keep their structured payload (missing fields, stock
// shortages) so the client can drive a corrective flow.
func writeDomainError(w http.ResponseWriter, err error, logger zerolog.Logger) {
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		logger.Warn().Str("code", ve.Code).Str("error", ve.Message).Msg("validation rejected")
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{
			Error:         ve.Code,
			Message:       ve.Message,
			MissingFields: ve.MissingFields,
			Shortages:     ve.Shortages,
		})
		return
	}

	var sc *model.StateConflictError
	if errors.As(err, &sc) {
		logger.Warn().Str("code", sc.Code).Str("error", sc.Message).Msg("state conflict")
		writeJSON(w, http.StatusConflict, model.ErrorResponse{Error: sc.Code, Message: sc.Message})
		return
	}

	var nf *model.NotFoundError
	if errors.As(err, &nf) {
		writeJSON(w, http.StatusNotFound, model.ErrorResponse{Error: nf.Code, Message: nf.Message})
		return
	}

	logger.Error().Err(err).Msg("handler error")
	writeJSON(w, http.StatusInternalServerError, model.ErrorResponse{
		Error:   model.ErrCodeInternalError,
		Message: "internal server error",
	})
}

// decodeJSON decodes the request body into dst.
func decodeJSON(r *http.Request, dst interface{}) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// decodeStrictJSON decodes the request body into dst, rejecting unknown fields.
func decodeStrictJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// customerID extracts the caller's identity from the X-Customer-ID header.
func customerID(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get("X-Customer-ID")
	if raw == "" {
		return uuid.Nil, errors.New("missing X-Customer-ID header")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.New("invalid X-Customer-ID header")
	}
	return id, nil
}
