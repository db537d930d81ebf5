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

package httpapi_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taganrog-go/catalog/pkg/catalog/engine"
	"github.com/taganrog-go/catalog/pkg/catalog/store"
	"github.com/taganrog-go/catalog/pkg/catalog/vault"
	"github.com/taganrog-go/catalog/pkg/catalog/walog"
	"github.com/taganrog-go/catalog/pkg/config"
	"github.com/taganrog-go/catalog/pkg/httpapi"
)

func newTestServer(t *testing.T) (*httpapi.Server, http.Handler) {
	t.Helper()
	fs := afero.NewMemMapFs()

	l, err := walog.Open(fs, "/workdir/taganrog.db.json")
	require.NoError(t, err)
	eng := engine.New(l, zerolog.Nop())
	require.NoError(t, eng.Start(nil))

	v := vault.New(fs, "/workdir", zerolog.Nop())
	require.NoError(t, v.EnsureDirs())

	cfg, err := config.NewConfig(t.TempDir(), func() config.Values {
		d := config.BaseDefaults
		d.Workdir = "/workdir"
		return d
	}())
	require.NoError(t, err)

	s := httpapi.New(eng, v, cfg, zerolog.Nop())
	return s, s.Router()
}

func TestPing(t *testing.T) {
	t.Parallel()
	_, router := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
}

func TestMediaLifecycle(t *testing.T) {
	t.Parallel()
	_, router := newTestServer(t)

	body, writer := multipartUpload(t, "pic.png", []byte("hello world"))
	req := httptest.NewRequest(http.MethodPost, "/api/media/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var created store.Media
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "pic.png", created.Filename)

	req = httptest.NewRequest(http.MethodGet, "/api/media/"+created.ID, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	addTagBody, _ := json.Marshal(map[string]string{"name": "cat"})
	req = httptest.NewRequest(http.MethodPost, "/api/media/"+created.ID+"/add-tag", bytes.NewReader(addTagBody))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	searchBody, _ := json.Marshal(map[string]string{"q": "cat"})
	req = httptest.NewRequest(http.MethodPost, "/api/media/search", bytes.NewReader(searchBody))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var results []store.Media
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, created.ID, results[0].ID)

	req = httptest.NewRequest(http.MethodGet, "/api/media/nonexistent", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/media/"+created.ID, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSearch_TrailingWhitespaceQueryStillMatches(t *testing.T) {
	t.Parallel()
	_, router := newTestServer(t)

	body, writer := multipartUpload(t, "pic.png", []byte("trailing-space-regression"))
	req := httptest.NewRequest(http.MethodPost, "/api/media/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var created store.Media
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	addTagBody, _ := json.Marshal(map[string]string{"name": "cat"})
	req = httptest.NewRequest(http.MethodPost, "/api/media/"+created.ID+"/add-tag", bytes.NewReader(addTagBody))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	searchBody, _ := json.Marshal(map[string]string{"q": "cat "})
	req = httptest.NewRequest(http.MethodPost, "/api/media/search", bytes.NewReader(searchBody))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var results []store.Media
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 1, "a trailing-space query must still match, not be treated as an unsatisfiable empty token")
	assert.Equal(t, created.ID, results[0].ID)
}

func TestUpload_DedupReturnsExisting(t *testing.T) {
	t.Parallel()
	_, router := newTestServer(t)

	body1, w1 := multipartUpload(t, "a.png", []byte("same-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/media/upload", body1)
	req.Header.Set("Content-Type", w1.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var first store.Media
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))

	body2, w2 := multipartUpload(t, "b.png", []byte("same-bytes"))
	req = httptest.NewRequest(http.MethodPost, "/api/media/upload", body2)
	req.Header.Set("Content-Type", w2.FormDataContentType())
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var second store.Media
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Filename, second.Filename, "second upload resolves to the first media record")
}

func TestThumbnail_PlaceholderWhenMissing(t *testing.T) {
	t.Parallel()
	_, router := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/media/any-id/thumbnail", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<svg")
}

func TestAddTag_ValidationError(t *testing.T) {
	t.Parallel()
	_, router := newTestServer(t)

	body, _ := json.Marshal(map[string]string{"name": ""})
	req := httptest.NewRequest(http.MethodPost, "/api/media/whatever/add-tag", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAuth_RejectsMissingToken(t *testing.T) {
	// Not parallel: the API token is process-wide, and every other test's
	// newTestServer reloads config, which resets it. The token is set after
	// newTestServer for the same reason.
	_, router := newTestServer(t)
	config.SetAPITokenForTesting("s3cr3t")
	defer config.SetAPITokenForTesting("")

	req := httptest.NewRequest(http.MethodGet, "/api/media/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Token", rec.Header().Get("WWW-Authenticate"))
}

func multipartUpload(t *testing.T, filename string, data []byte) (*bytes.Buffer, *multipart.Writer) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	part, err := w.CreateFormFile("file", filepath.Base(filename))
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf, w
}
