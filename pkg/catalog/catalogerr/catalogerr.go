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

// Package catalogerr defines the error taxonomy shared by the catalog
// engine and its HTTP boundary adapter.
package catalogerr

import (
	"errors"
	"fmt"
)

// Sentinel kinds, checked with errors.Is against wrapped errors returned
// by the engine and its components.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrLogIO    = errors.New("log i/o error")
	ErrFileIO   = errors.New("file i/o error")
	ErrInternal = errors.New("internal error")
)

// ValidationError carries per-field validation messages, mirroring the
// {field: [msgs]} shape of the HTTP 422 response body.
type ValidationError struct {
	Fields map[string][]string
}

// NewValidation builds a ValidationError from a single field/message pair.
func NewValidation(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string][]string{field: {msg}}}
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}
	var first string
	for field, msgs := range e.Fields {
		if len(msgs) > 0 {
			first = fmt.Sprintf("%s: %s", field, msgs[0])
			break
		}
	}
	return first
}

// Add appends a message for field, creating the slice if necessary.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}
