// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/blinklabs-io/zktender/tender"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

// writeJSON writes a JSON response with the given status code
func writeJSON(
	w http.ResponseWriter,
	status int,
	v any,
) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson
	json.NewEncoder(w).Encode(v)
}

// writeError writes an error response
func writeError(
	w http.ResponseWriter,
	status int,
	message string,
) {
	writeJSON(w, status, ErrorResponse{
		StatusCode: status,
		Error:      http.StatusText(status),
		Message:    message,
	})
}

// writeEngineError maps an engine error to its HTTP status
func (s *Server) writeEngineError(
	w http.ResponseWriter,
	r *http.Request,
	err error,
) {
	var phaseErr *tender.PhaseViolationError
	switch {
	case errors.As(err, &phaseErr):
		required := make([]string, 0, len(phaseErr.Required))
		for _, p := range phaseErr.Required {
			required = append(required, string(p))
		}
		writeJSON(w, http.StatusForbidden, ErrorResponse{
			StatusCode:     http.StatusForbidden,
			Error:          http.StatusText(http.StatusForbidden),
			Message:        err.Error(),
			CurrentPhase:   string(phaseErr.Current),
			RequiredPhases: required,
		})
	case errors.Is(err, tender.ErrDuplicateNullifier),
		errors.Is(err, tender.ErrAlreadyRevealed),
		errors.Is(err, tender.ErrAlreadyEvaluated),
		errors.Is(err, tender.ErrTenderExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, tender.ErrNotFound),
		errors.Is(err, tender.ErrTenderNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, errBadRequest),
		errors.Is(err, tender.ErrInvalidPhase),
		errors.Is(err, tender.ErrInvalidProof),
		errors.Is(err, tender.ErrInvalidVoteType),
		errors.Is(err, tender.ErrInvalidStake),
		errors.Is(err, tender.ErrEmptyNullifier),
		errors.Is(err, tender.ErrEmptyComment),
		errors.Is(err, tender.ErrInvalidTenderID),
		errors.Is(err, ErrInvalidPaginationParameters):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		s.logger.Error(
			"request failed",
			"request_id", RequestID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeError(
			w,
			http.StatusInternalServerError,
			"internal server error",
		)
	}
}

// decodeJSON strictly decodes a request body into v
func decodeJSON(
	w http.ResponseWriter,
	r *http.Request,
	v any,
) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %w", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: unexpected data after JSON body", errBadRequest)
	}
	return nil
}
