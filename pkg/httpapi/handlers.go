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
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/taganrog-go/catalog/pkg/catalog/catalogerr"
	"github.com/taganrog-go/catalog/pkg/catalog/hash"
	"github.com/taganrog-go/catalog/pkg/catalog/slugs"
	"github.com/taganrog-go/catalog/pkg/catalog/store"
)

const (
	defaultPageSize = 10
	placeholderSVG  = `<svg xmlns="http://www.w3.org/2000/svg" width="200" height="200"><rect width="100%" height="100%" fill="#ddd"/></svg>`
)

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("pong"))
}

func pageParams(r *http.Request) (pageSize, pageIndex int) {
	pageSize = defaultPageSize
	if v := r.URL.Query().Get("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			pageSize = n
		}
	}
	if v := r.URL.Query().Get("page_index"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			pageIndex = n
		}
	}
	return pageSize, pageIndex
}

func (s *Server) handleListMedia(w http.ResponseWriter, r *http.Request) {
	pageSize, pageIndex := pageParams(r)
	writeJSON(w, http.StatusOK, s.engine.GetAll(pageSize, pageIndex))
}

// createMediaRequest ingests an already-present file by workdir-relative
// path; byte uploads go through handleUpload instead.
type createMediaRequest struct {
	Filename  string     `json:"filename" validate:"required"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

func (s *Server) handleCreateMedia(w http.ResponseWriter, r *http.Request) {
	var req createMediaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, catalogerr.NewValidation("body", "malformed JSON"))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, err)
		return
	}

	cand, err := s.vault.IngestByPath(r.Context(), req.Filename)
	if err != nil {
		s.writeError(w, err)
		return
	}

	createdAt := time.Now().UTC()
	if req.CreatedAt != nil {
		createdAt = req.CreatedAt.UTC()
	}

	media, _, err := s.engine.CreateMedia(store.Media{
		ID:          cand.Hash,
		Filename:    cand.Filename,
		ContentType: cand.ContentType,
		Size:        cand.Size,
		Location:    cand.Location,
		CreatedAt:   createdAt,
		WasUploaded: false,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, media)
}

func (s *Server) handleRandomMedia(w http.ResponseWriter, _ *http.Request) {
	m, ok := s.engine.GetRandom()
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleGetMedia(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	m, ok := s.engine.Get(id)
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleDeleteMedia(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	pre, ok, err := s.engine.DeleteMedia(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err := s.vault.DeleteThumbnail(id); err != nil {
		s.logger.Warn().Err(err).Str("media_id", id).Msg("failed to delete thumbnail")
	}
	writeJSON(w, http.StatusOK, pre)
}

func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.vault.HasThumbnail(id) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Content-Type", "image/svg+xml")
		_, _ = w.Write([]byte(placeholderSVG))
		return
	}

	f, err := s.vault.OpenThumbnail(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer func() { _ = f.Close() }()

	w.Header().Set("Content-Type", "image/png")
	http.ServeContent(w, r, id+".png", time.Time{}, f)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	m, ok := s.engine.Get(id)
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	f, err := s.vault.Open(m.Location)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer func() { _ = f.Close() }()

	w.Header().Set("Content-Type", m.ContentType)
	http.ServeContent(w, r, m.Filename, m.CreatedAt, f)
}

type tagNameRequest struct {
	Name string `json:"name" validate:"required"`
}

func (s *Server) decodeTagName(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req tagNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, catalogerr.NewValidation("body", "malformed JSON"))
		return "", false
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, err)
		return "", false
	}
	return req.Name, true
}

func (s *Server) handleAddTag(w http.ResponseWriter, r *http.Request) {
	name, ok := s.decodeTagName(w, r)
	if !ok {
		return
	}
	m, err := s.engine.AddTag(chi.URLParam(r, "id"), name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleRemoveTag(w http.ResponseWriter, r *http.Request) {
	name, ok := s.decodeTagName(w, r)
	if !ok {
		return
	}
	m, err := s.engine.RemoveTag(chi.URLParam(r, "id"), name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type searchRequest struct {
	Q string `json:"q" validate:"required"`
	P int    `json:"p,omitempty"`
	S int    `json:"s,omitempty"`
}

// handleSearch implements the three special query forms ("all", "null",
// "no-thumbnail") alongside tag-token search, per §6.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, catalogerr.NewValidation("body", "malformed JSON"))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, err)
		return
	}

	pageSize := defaultPageSize
	if req.S > 0 {
		pageSize = req.S
	}

	switch req.Q {
	case "all":
		writeJSON(w, http.StatusOK, s.engine.GetAll(pageSize, req.P))
		return
	case "null":
		writeJSON(w, http.StatusOK, s.engine.GetUntagged(pageSize, req.P))
		return
	case "no-thumbnail":
		writeJSON(w, http.StatusOK, s.engine.GetNoThumbnail(pageSize, req.P, s.vault.HasThumbnail))
		return
	}

	// NormalizeQuery appends a trailing empty token when the raw query ends
	// in whitespace, to signal Autocomplete that the preceding token is
	// finished. Search has no use for that sentinel: every token must
	// match under AND semantics, and an empty token can never match, so it
	// must be stripped here rather than fed into Tokens.
	canonical := strings.TrimRight(slugs.NormalizeQuery(req.Q), " ")
	tokens := slugs.Tokens(canonical)
	writeJSON(w, http.StatusOK, s.engine.Search(tokens, pageSize))
}

type autocompleteRequest struct {
	Q string `json:"q" validate:"required"`
	S int    `json:"s,omitempty"`
}

type completionResponse struct {
	Head  []string `json:"head"`
	Last  string    `json:"last"`
	Count int       `json:"count,omitempty"`
}

func (s *Server) handleAutocomplete(w http.ResponseWriter, r *http.Request) {
	var req autocompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, catalogerr.NewValidation("body", "malformed JSON"))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, err)
		return
	}

	limit := defaultPageSize
	if req.S > 0 {
		limit = req.S
	}

	canonical := slugs.NormalizeQuery(req.Q)
	tokens := slugs.Tokens(canonical)
	completions := s.engine.Autocomplete(tokens, limit)

	out := make([]completionResponse, len(completions))
	for i, c := range completions {
		out[i] = completionResponse{Head: c.Head, Last: c.Last, Count: c.Count}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		s.writeError(w, catalogerr.NewValidation("body", "malformed multipart form"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, catalogerr.NewValidation("file", "missing upload field"))
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, catalogerr.ErrFileIO)
		return
	}

	h := hash.Bytes(data)
	if existing, ok := s.engine.Get(h); ok {
		s.maybeWriteThumbnail(r, existing.ID)
		writeJSON(w, http.StatusOK, existing)
		return
	}

	cand, err := s.vault.IngestUpload(r.Context(), header.Filename, data)
	if err != nil {
		s.writeError(w, err)
		return
	}

	media, _, err := s.engine.CreateMedia(store.Media{
		ID:          cand.Hash,
		Filename:    cand.Filename,
		ContentType: cand.ContentType,
		Size:        cand.Size,
		Location:    cand.Location,
		CreatedAt:   time.Now().UTC(),
		WasUploaded: true,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.maybeWriteThumbnail(r, media.ID)
	writeJSON(w, http.StatusOK, media)
}

func (s *Server) maybeWriteThumbnail(r *http.Request, mediaID string) {
	thumbFile, _, err := r.FormFile("thumbnail")
	if err != nil {
		return
	}
	defer func() { _ = thumbFile.Close() }()

	data, err := io.ReadAll(thumbFile)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to read uploaded thumbnail")
		return
	}
	if err := s.vault.WriteThumbnail(r.Context(), mediaID, data); err != nil {
		s.logger.Warn().Err(err).Str("media_id", mediaID).Msg("failed to write thumbnail")
	}
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Export())
}
