// Package httpx holds the JSON plumbing shared by the HandlePath handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	domainauth "github.com/NordCoder/Jobportal/internal/domain/auth"
	"go.uber.org/zap"
)

const maxBody = 1 << 20

type ErrorBody struct {
	Error string `json:"error"`
}

type MessageBody struct {
	Message string `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func StatusOf(k domainauth.Kind) int {
	switch k {
	case domainauth.KindValidation:
		return http.StatusBadRequest
	case domainauth.KindNotFound:
		return http.StatusNotFound
	case domainauth.KindConflict:
		return http.StatusConflict
	case domainauth.KindUnauthorized:
		return http.StatusUnauthorized
	case domainauth.KindForbidden:
		return http.StatusForbidden
	case domainauth.KindTooManyRequests:
		return http.StatusTooManyRequests
	case domainauth.KindInfrastructure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteError answers with the status of err's kind. Infrastructure and
// unclassified failures are logged and their detail is kept off the wire.
func WriteError(w http.ResponseWriter, log *zap.Logger, err error) {
	kind := domainauth.KindOf(err)
	status := StatusOf(kind)
	msg := err.Error()

	switch kind {
	case domainauth.KindInfrastructure:
		log.Error("request failed", zap.String("kind", kind.String()), zap.Error(err))
		msg = "service temporarily unavailable"
	case domainauth.KindUnknown:
		log.Error("request failed", zap.Error(err))
		msg = "internal error"
	default:
		var de *domainauth.Error
		if errors.As(err, &de) {
			msg = de.Msg
		}
	}
	WriteJSON(w, status, ErrorBody{Error: msg})
}

// DecodeJSON reads a bounded JSON body into v. An empty body leaves v untouched.
func DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return domainauth.ErrInvalidInput
	}
	return nil
}
