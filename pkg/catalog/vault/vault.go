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

// Package vault resolves media bytes on disk: path validation against the
// workdir, upload placement with collision suffixing, and thumbnail
// placement. It never touches Store, TagIndex or the Log; callers (the
// Engine's composition root) decide what to do with the Candidate it
// returns.
package vault

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/taganrog-go/catalog/pkg/catalog/catalogerr"
	"github.com/taganrog-go/catalog/pkg/catalog/hash"
	"golang.org/x/sync/singleflight"
)

// ThumbnailDirName and UploadDirName are the fixed subdirectories of workdir
// that FileVault manages; referenced files may live anywhere else under
// workdir.
const (
	ThumbnailDirName = "taganrog-thumbnails"
	UploadDirName    = "taganrog-uploads"
)

var filenamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Candidate is an ingested-but-not-yet-cataloged file: everything the
// Engine needs to build a Media record, minus the decision of whether it
// is new or a dedup hit (the caller checks that against Store).
type Candidate struct {
	Hash        string
	Filename    string
	ContentType string
	Size        int64
	Location    string
}

// Vault resolves and places media bytes under a single workdir root.
type Vault struct {
	fs      afero.Fs
	workdir string
	logger  zerolog.Logger

	uploadGroup singleflight.Group
}

// New returns a Vault rooted at workdir. fs is injectable for testing;
// production callers pass afero.NewOsFs().
func New(fs afero.Fs, workdir string, logger zerolog.Logger) *Vault {
	return &Vault{
		fs:      fs,
		workdir: filepath.Clean(workdir),
		logger:  logger.With().Str("component", "vault").Logger(),
	}
}

// UploadDir and ThumbnailDir are the absolute, workdir-relative directories
// Vault writes into.
func (v *Vault) UploadDir() string   { return filepath.Join(v.workdir, UploadDirName) }
func (v *Vault) ThumbnailDir() string { return filepath.Join(v.workdir, ThumbnailDirName) }

// EnsureDirs creates the upload and thumbnail directories if absent.
func (v *Vault) EnsureDirs() error {
	if err := v.fs.MkdirAll(v.UploadDir(), 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w: %w", catalogerr.ErrFileIO, err)
	}
	if err := v.fs.MkdirAll(v.ThumbnailDir(), 0o755); err != nil {
		return fmt.Errorf("create thumbnail dir: %w: %w", catalogerr.ErrFileIO, err)
	}
	return nil
}

// relativize resolves userPath against the workdir and rejects any result
// that escapes it, per §3 invariant 3.
func (v *Vault) relativize(userPath string) (absPath, relPath string, err error) {
	abs := userPath
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(v.workdir, userPath)
	}
	abs = filepath.Clean(abs)

	rel, err := filepath.Rel(v.workdir, abs)
	if err != nil {
		return "", "", catalogerr.NewValidation("path", "path could not be resolved against workdir")
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", "", catalogerr.NewValidation("path", "path escapes workdir")
	}
	return abs, filepath.ToSlash(rel), nil
}

// IngestByPath validates and reads a file referenced by an existing
// on-disk path, without copying or moving it.
func (v *Vault) IngestByPath(ctx context.Context, userPath string) (Candidate, error) {
	abs, rel, err := v.relativize(userPath)
	if err != nil {
		return Candidate{}, err
	}

	info, err := v.fs.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return Candidate{}, catalogerr.NewValidation("path", "file does not exist")
		}
		return Candidate{}, fmt.Errorf("stat %q: %w: %w", rel, catalogerr.ErrFileIO, err)
	}
	if info.IsDir() {
		return Candidate{}, catalogerr.NewValidation("path", "path is a directory")
	}

	data, err := v.readAll(ctx, abs)
	if err != nil {
		return Candidate{}, fmt.Errorf("read %q: %w: %w", rel, catalogerr.ErrFileIO, err)
	}

	return Candidate{
		Hash:        hash.Bytes(data),
		Filename:    filepath.Base(rel),
		ContentType: detectContentType(data),
		Size:        int64(len(data)),
		Location:    rel,
	}, nil
}

func validateUploadFilename(name string) error {
	if name == "" {
		return catalogerr.NewValidation("filename", "filename must not be empty")
	}
	if strings.ContainsAny(name, "/\\") {
		return catalogerr.NewValidation("filename", "filename must not contain path separators")
	}
	if !filenamePattern.MatchString(name) {
		return catalogerr.NewValidation("filename", "filename must be ASCII alphanumeric plus '.', '-', '_'")
	}
	return nil
}

// IngestUpload places freshly streamed bytes under the upload directory.
// It does not consult Store: the caller checks for an existing record with
// this content hash first and only calls IngestUpload for new content.
// Collisions on the on-disk filename with different content are resolved
// with a dupN- prefix, per §4.7.
func (v *Vault) IngestUpload(ctx context.Context, filename string, data []byte) (Candidate, error) {
	if err := validateUploadFilename(filename); err != nil {
		return Candidate{}, err
	}

	h := hash.Bytes(data)

	// Coalesce concurrent uploads of identical bytes: only the first
	// caller for a given hash actually touches the filesystem.
	result, err, _ := v.uploadGroup.Do(h, func() (any, error) {
		return v.placeUpload(ctx, filename, data, h)
	})
	if err != nil {
		return Candidate{}, err
	}
	return result.(Candidate), nil //nolint:forcetypeassert // only placeUpload populates this key
}

func (v *Vault) placeUpload(ctx context.Context, filename string, data []byte, h string) (Candidate, error) {
	if err := v.EnsureDirs(); err != nil {
		return Candidate{}, err
	}

	name, err := v.uniqueUploadName(filename, h)
	if err != nil {
		return Candidate{}, err
	}

	abs := filepath.Join(v.UploadDir(), name)
	if err := v.writeAtomic(ctx, abs, data); err != nil {
		return Candidate{}, fmt.Errorf("write upload %q: %w: %w", name, catalogerr.ErrFileIO, err)
	}
	rel, err := filepath.Rel(v.workdir, abs)
	if err != nil {
		return Candidate{}, fmt.Errorf("relativize upload path: %w: %w", catalogerr.ErrInternal, err)
	}

	v.logger.Debug().Str("hash", h).Str("filename", name).Msg("placed upload")
	return Candidate{
		Hash:        h,
		Filename:    name,
		ContentType: detectContentType(data),
		Size:        int64(len(data)),
		Location:    filepath.ToSlash(rel),
	}, nil
}

// uniqueUploadName returns filename itself if free, else dup1-filename,
// dup2-filename, and so on, per §4.7. A taken name whose file already holds
// content with hash h is returned as is, so identical bytes share one file.
func (v *Vault) uniqueUploadName(filename, h string) (string, error) {
	candidate := filename
	for k := 1; ; k++ {
		path := filepath.Join(v.UploadDir(), candidate)
		exists, err := afero.Exists(v.fs, path)
		if err != nil {
			return "", fmt.Errorf("stat upload candidate: %w: %w", catalogerr.ErrFileIO, err)
		}
		if !exists {
			return candidate, nil
		}
		if existing, err := afero.ReadFile(v.fs, path); err == nil && hash.Bytes(existing) == h {
			return candidate, nil
		}
		candidate = fmt.Sprintf("dup%d-%s", k, filename)
	}
}

// writeAtomic stages into a uuid-named temp file in the same directory and
// renames it into place, so a crash mid-write never leaves a partial file
// visible under its final name.
func (v *Vault) writeAtomic(_ context.Context, abs string, data []byte) error {
	dir := filepath.Dir(abs)
	tmp := filepath.Join(dir, "."+uuid.NewString()+".tmp")

	f, err := v.fs.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = v.fs.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = v.fs.Remove(tmp)
		return err
	}
	if err := v.fs.Rename(tmp, abs); err != nil {
		_ = v.fs.Remove(tmp)
		return err
	}
	return nil
}

func (v *Vault) readAll(_ context.Context, abs string) ([]byte, error) {
	f, err := v.fs.Open(abs)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			v.logger.Warn().Err(cerr).Str("path", abs).Msg("failed to close file")
		}
	}()
	return io.ReadAll(f)
}

func detectContentType(data []byte) string {
	mt := mimetype.Detect(data)
	if mt == nil {
		return "application/octet-stream"
	}
	return mt.String()
}

// ThumbnailPath returns the deterministic on-disk path for a media's
// thumbnail, whether or not it currently exists.
func (v *Vault) ThumbnailPath(mediaID string) string {
	return filepath.Join(v.ThumbnailDir(), mediaID+".png")
}

// HasThumbnail reports whether a thumbnail file currently exists for
// mediaID, for use by Store.GetNoThumbnail.
func (v *Vault) HasThumbnail(mediaID string) bool {
	exists, err := afero.Exists(v.fs, v.ThumbnailPath(mediaID))
	return err == nil && exists
}

// WriteThumbnail stages and atomically places thumbnail bytes for mediaID.
func (v *Vault) WriteThumbnail(ctx context.Context, mediaID string, data []byte) error {
	if err := v.fs.MkdirAll(v.ThumbnailDir(), 0o755); err != nil {
		return fmt.Errorf("create thumbnail dir: %w: %w", catalogerr.ErrFileIO, err)
	}
	if err := v.writeAtomic(ctx, v.ThumbnailPath(mediaID), data); err != nil {
		return fmt.Errorf("write thumbnail %q: %w: %w", mediaID, catalogerr.ErrFileIO, err)
	}
	return nil
}

// OpenThumbnail opens mediaID's thumbnail file for reading. Callers should
// check HasThumbnail first; a missing file still returns an error here.
func (v *Vault) OpenThumbnail(mediaID string) (afero.File, error) {
	f, err := v.fs.Open(v.ThumbnailPath(mediaID))
	if err != nil {
		return nil, fmt.Errorf("open thumbnail %q: %w: %w", mediaID, catalogerr.ErrFileIO, err)
	}
	return f, nil
}

// DeleteThumbnail best-effort removes mediaID's thumbnail; absence is not
// an error, per §4.7.
func (v *Vault) DeleteThumbnail(mediaID string) error {
	err := v.fs.Remove(v.ThumbnailPath(mediaID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete thumbnail %q: %w: %w", mediaID, catalogerr.ErrFileIO, err)
	}
	return nil
}

// Open returns a read handle on a media file for streaming, given its
// workdir-relative location.
func (v *Vault) Open(location string) (afero.File, error) {
	abs := filepath.Join(v.workdir, filepath.FromSlash(location))
	f, err := v.fs.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w: %w", location, catalogerr.ErrFileIO, err)
	}
	return f, nil
}

// bufReadSeekCloser adapts bytes already held in memory to the
// io.ReadSeekCloser shape of a file handle.
type bufReadSeekCloser struct {
	*bytes.Reader
}

func (bufReadSeekCloser) Close() error { return nil }

// NewStaticReader wraps an in-memory byte slice as a ReadSeekCloser so it
// can be treated the same as a file handle.
func NewStaticReader(b []byte) io.ReadSeekCloser {
	return bufReadSeekCloser{bytes.NewReader(b)}
}
