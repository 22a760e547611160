// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/anieflix/internal/domain/media"
	"github.com/ManuGH/anieflix/internal/log"
)

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	writeJSON(w, status, errorBody{
		Error:     msg,
		Code:      code,
		RequestID: log.RequestIDFromContext(r.Context()),
	})
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	writeJSONError(w, r, http.StatusBadRequest, "BadRequest", msg)
}

// statusFor maps the error taxonomy to HTTP status codes.
func statusFor(err error) int {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return http.StatusRequestEntityTooLarge
	}
	switch media.KindOf(err) {
	case media.KindUnsupportedFormat, media.KindInvalidPath:
		return http.StatusBadRequest
	case media.KindNotFound:
		return http.StatusNotFound
	case media.KindBusy:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError translates err once for the client. Server-side failures keep
// their detail in the log only.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	kind := media.KindOf(err)
	code := string(kind)
	if code == "" {
		code = "Internal"
	}
	if status == http.StatusRequestEntityTooLarge {
		code = "TooLarge"
	}

	logger := log.WithComponentFromContext(r.Context(), "api")
	evt := logger.Warn()
	if status >= http.StatusInternalServerError {
		evt = logger.Error()
	}
	evt.Err(err).
		Str(log.FieldKind, code).
		Str(log.FieldReason, string(media.ReasonOf(err))).
		Int("status", status).
		Msg("request failed")

	msg := clientMessage(status, err)
	writeJSONError(w, r, status, code, msg)
}

func clientMessage(status int, err error) string {
	switch status {
	case http.StatusInternalServerError:
		var me *media.Error
		if errors.As(err, &me) {
			switch me.Kind {
			case media.KindTranscode:
				if me.Reason == media.ReasonTimeout {
					return "video processing timed out"
				}
				return "video processing failed"
			case media.KindCatalogWriteFailed:
				return "failed to save to database"
			}
		}
		return "internal server error"
	case http.StatusNotFound:
		return "not found"
	case http.StatusConflict:
		return "asset is being processed, try again later"
	case http.StatusRequestEntityTooLarge:
		return "upload too large"
	}
	var me *media.Error
	if errors.As(err, &me) {
		switch {
		case me.Detail != "":
			return me.Detail
		case me.Err != nil:
			return me.Err.Error()
		}
		return string(me.Kind)
	}
	return err.Error()
}
