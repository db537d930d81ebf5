// Taganrog Catalog
// Copyright (c) 2026 The Taganrog Catalog Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Taganrog Catalog.
//
// Taganrog Catalog is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Taganrog Catalog is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Taganrog Catalog.  If not, see <http://www.gnu.org/licenses/>.

package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/taganrog-go/catalog/pkg/catalog/catalogerr"
)

type validationBody struct {
	Errors map[string][]string `json:"errors"`
}

// writeError maps the catalogerr taxonomy (and go-playground/validator
// failures) onto the status codes of §7.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var verr *catalogerr.ValidationError
	var fieldErrs validator.ValidationErrors

	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, validationBody{Errors: verr.Fields})
	case errors.As(err, &fieldErrs):
		writeJSON(w, http.StatusUnprocessableEntity, validationBody{Errors: fieldsToErrors(fieldErrs)})
	case errors.Is(err, catalogerr.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, catalogerr.ErrConflict):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
	case errors.Is(err, catalogerr.ErrLogIO), errors.Is(err, catalogerr.ErrFileIO), errors.Is(err, catalogerr.ErrInternal):
		s.logger.Error().Err(err).Msg("internal error")
		http.Error(w, "internal error", http.StatusInternalServerError)
	default:
		s.logger.Error().Err(err).Msg("unmapped error")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func fieldsToErrors(errs validator.ValidationErrors) map[string][]string {
	out := make(map[string][]string, len(errs))
	for _, fe := range errs {
		field := strings.ToLower(fe.Field())
		out[field] = append(out[field], formatValidationTag(fe))
	}
	return out
}

func formatValidationTag(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
