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

// Package walog implements the append-only mutation journal: the sole
// durable source of truth for the catalog. Each line of the journal file
// is one self-contained, newline-delimited JSON record.
package walog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/afero"
	"github.com/taganrog-go/catalog/pkg/catalog/catalogerr"
	"github.com/taganrog-go/catalog/pkg/catalog/store"
)

const fileOpenFlags = os.O_APPEND | os.O_CREATE | os.O_WRONLY

// Record is a discriminated union of the four mutation variants, encoded
// the way an externally-tagged enum would be: exactly one field is set.
// Unknown discriminants (fields this version doesn't recognize) make a
// line fail to decode into any known variant and are rejected on replay,
// per the forward-compatibility rule of the design notes.
type Record struct {
	CreateMedia        *CreateMediaOp        `json:"CreateMedia,omitempty"`
	DeleteMedia        *DeleteMediaOp        `json:"DeleteMedia,omitempty"`
	AddTagToMedia      *AddTagToMediaOp      `json:"AddTagToMedia,omitempty"`
	RemoveTagFromMedia *RemoveTagFromMediaOp `json:"RemoveTagFromMedia,omitempty"`
}

type CreateMediaOp struct {
	Media store.Media `json:"media"`
}

type DeleteMediaOp struct {
	MediaID string `json:"media_id"`
}

type AddTagToMediaOp struct {
	MediaID string `json:"media_id"`
	Tag     string `json:"tag"`
}

type RemoveTagFromMediaOp struct {
	MediaID string `json:"media_id"`
	Tag     string `json:"tag"`
}

func (r Record) variantCount() int {
	n := 0
	if r.CreateMedia != nil {
		n++
	}
	if r.DeleteMedia != nil {
		n++
	}
	if r.AddTagToMedia != nil {
		n++
	}
	if r.RemoveTagFromMedia != nil {
		n++
	}
	return n
}

// Log is the append-only journal. A single writer is expected (the Engine
// serializes mutations before calling Append); Replay may run concurrently
// with nothing else since it only happens at startup.
type Log struct {
	fs   afero.Fs
	path string

	mu   sync.Mutex
	file afero.File
}

// Open opens (creating if necessary) the journal file at path for
// appending, keeping the handle open for the lifetime of the Log.
func Open(fs afero.Fs, path string) (*Log, error) {
	f, err := fs.OpenFile(path, fileOpenFlags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open log: %w", catalogerr.ErrLogIO, err)
	}
	return &Log{fs: fs, path: path, file: f}, nil
}

// Close releases the journal's file handle.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("%w: close log: %w", catalogerr.ErrLogIO, err)
	}
	return nil
}

// Append serializes record, appends it as one framed (newline-delimited)
// line, and flushes it to durable storage before returning. The Engine
// applies each mutation in memory first and rolls it back if Append
// returns an error.
func (l *Log) Append(record Record) error {
	if record.variantCount() != 1 {
		return fmt.Errorf("%w: record must have exactly one variant set", catalogerr.ErrInternal)
	}

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: encode record: %w", catalogerr.ErrLogIO, err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.Write(line); err != nil {
		return fmt.Errorf("%w: write record: %w", catalogerr.ErrLogIO, err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("%w: flush record: %w", catalogerr.ErrLogIO, err)
	}
	return nil
}

// Replay opens the journal from the start and decodes records in write
// order, stopping cleanly at EOF or at the first line that fails to parse
// as a single-variant Record (a torn trailing write, or an unrecognized
// future discriminant). All records before the stopping point are valid
// and returned; none after it are.
func Replay(fs afero.Fs, path string) ([]Record, error) {
	f, err := fs.Open(path)
	if err != nil {
		if ok, _ := afero.Exists(fs, path); !ok {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: open log for replay: %w", catalogerr.ErrLogIO, err)
	}
	defer func() { _ = f.Close() }()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil || rec.variantCount() != 1 {
			break
		}
		records = append(records, rec)
	}
	return records, nil
}
