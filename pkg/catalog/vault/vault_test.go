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

package vault_test

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taganrog-go/catalog/pkg/catalog/vault"
)

func newVault(t *testing.T) (*vault.Vault, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/workdir/extra", 0o755))
	v := vault.New(fs, "/workdir", zerolog.Nop())
	require.NoError(t, v.EnsureDirs())
	return v, fs
}

func TestIngestByPath_RejectsEscape(t *testing.T) {
	t.Parallel()
	v, _ := newVault(t)
	_, err := v.IngestByPath(context.Background(), "../outside.png")
	assert.Error(t, err)
}

func TestIngestByPath_RejectsMissingAndDirectory(t *testing.T) {
	t.Parallel()
	v, _ := newVault(t)

	_, err := v.IngestByPath(context.Background(), "missing.png")
	assert.Error(t, err)

	_, err = v.IngestByPath(context.Background(), "extra")
	assert.Error(t, err)
}

func TestIngestByPath_ReadsAndHashes(t *testing.T) {
	t.Parallel()
	v, fs := newVault(t)
	require.NoError(t, afero.WriteFile(fs, "/workdir/extra/pic.png", []byte("hello"), 0o644))

	c, err := v.IngestByPath(context.Background(), "extra/pic.png")
	require.NoError(t, err)
	assert.Equal(t, "pic.png", c.Filename)
	assert.Equal(t, "extra/pic.png", c.Location)
	assert.Equal(t, int64(5), c.Size)
	assert.NotEmpty(t, c.Hash)
}

func TestIngestUpload_RejectsBadFilenames(t *testing.T) {
	t.Parallel()
	v, _ := newVault(t)

	_, err := v.IngestUpload(context.Background(), "", []byte("x"))
	assert.Error(t, err)

	_, err = v.IngestUpload(context.Background(), "../escape.png", []byte("x"))
	assert.Error(t, err)

	_, err = v.IngestUpload(context.Background(), "sub/dir.png", []byte("x"))
	assert.Error(t, err)
}

func TestIngestUpload_CollisionSuffixing(t *testing.T) {
	t.Parallel()
	v, fs := newVault(t)

	c1, err := v.IngestUpload(context.Background(), "pic.png", []byte("one"))
	require.NoError(t, err)
	assert.Equal(t, "pic.png", c1.Filename)

	c2, err := v.IngestUpload(context.Background(), "pic.png", []byte("two"))
	require.NoError(t, err)
	assert.Equal(t, "dup1-pic.png", c2.Filename)
	assert.NotEqual(t, c1.Hash, c2.Hash)

	exists1, _ := afero.Exists(fs, "/workdir/taganrog-uploads/pic.png")
	exists2, _ := afero.Exists(fs, "/workdir/taganrog-uploads/dup1-pic.png")
	assert.True(t, exists1)
	assert.True(t, exists2)
}

func TestIngestUpload_ConcurrentIdenticalBytesCoalesce(t *testing.T) {
	t.Parallel()
	v, _ := newVault(t)

	const n = 10
	var wg sync.WaitGroup
	results := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := v.IngestUpload(context.Background(), "same.png", []byte("identical"))
			require.NoError(t, err)
			results[i] = c.Filename
		}(i)
	}
	wg.Wait()

	for _, name := range results {
		assert.Equal(t, "same.png", name, "every caller should observe the same placed file, no dup suffix")
	}
}

func TestThumbnailLifecycle(t *testing.T) {
	t.Parallel()
	v, _ := newVault(t)

	assert.False(t, v.HasThumbnail("abc"))
	require.NoError(t, v.WriteThumbnail(context.Background(), "abc", []byte("png-bytes")))
	assert.True(t, v.HasThumbnail("abc"))

	require.NoError(t, v.DeleteThumbnail("abc"))
	assert.False(t, v.HasThumbnail("abc"))

	// deleting an absent thumbnail is not an error.
	require.NoError(t, v.DeleteThumbnail("abc"))
}

func TestOpen_StreamsPlacedFile(t *testing.T) {
	t.Parallel()
	v, _ := newVault(t)

	c, err := v.IngestUpload(context.Background(), "stream.png", []byte("stream-bytes"))
	require.NoError(t, err)

	f, err := v.Open(c.Location)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	buf := make([]byte, 64)
	n, _ := f.Read(buf)
	assert.Equal(t, "stream-bytes", string(buf[:n]))
}
