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

// Package engine is the only component that mutates catalog state. Every
// mutating operation follows the apply-then-log protocol of §4.6: validate,
// apply to Store+TagIndex under the single-writer lock, append to the Log,
// and roll back the in-memory change if the append fails. Reads acquire
// only a shared lock and never touch the Log.
package engine

import (
	"fmt"

	"github.com/rs/zerolog"
	deadlock "github.com/sasha-s/go-deadlock"
	"github.com/taganrog-go/catalog/pkg/catalog/catalogerr"
	"github.com/taganrog-go/catalog/pkg/catalog/slugs"
	"github.com/taganrog-go/catalog/pkg/catalog/store"
	"github.com/taganrog-go/catalog/pkg/catalog/tagindex"
	"github.com/taganrog-go/catalog/pkg/catalog/walog"
)

// Engine composes the Store, TagIndex and Log and exposes the catalog's
// entire read/write API. The zero value is not usable; construct with New.
type Engine struct {
	mu     deadlock.RWMutex
	store  *store.Store
	index  *tagindex.TagIndex
	log    *walog.Log
	logger zerolog.Logger
}

// New wires a fresh, empty Engine around an already-open Log. Call Start to
// replay any existing history before serving traffic.
func New(log *walog.Log, logger zerolog.Logger) *Engine {
	return &Engine{
		store:  store.New(),
		index:  tagindex.New(),
		log:    log,
		logger: logger.With().Str("component", "engine").Logger(),
	}
}

// Start replays the Log into Store and TagIndex. It must be called exactly
// once, before any mutating call, and skips the Log append that a live
// mutation would perform.
func (e *Engine) Start(records []walog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, rec := range records {
		switch {
		case rec.CreateMedia != nil:
			m := rec.CreateMedia.Media
			if _, res := e.store.Create(m); res == store.Inserted {
				e.index.Insert(m.ID, m.Tags)
			}
		case rec.DeleteMedia != nil:
			if m, ok := e.store.Delete(rec.DeleteMedia.MediaID); ok {
				e.index.Remove(m.ID, m.Tags)
			}
		case rec.AddTagToMedia != nil:
			id, tag := rec.AddTagToMedia.MediaID, rec.AddTagToMedia.Tag
			before, ok := e.store.Get(id)
			if !ok {
				continue
			}
			if e.store.AddTag(id, tag) {
				after, _ := e.store.Get(id)
				e.index.Update(id, before.Tags, after.Tags)
			}
		case rec.RemoveTagFromMedia != nil:
			id, tag := rec.RemoveTagFromMedia.MediaID, rec.RemoveTagFromMedia.Tag
			before, ok := e.store.Get(id)
			if !ok {
				continue
			}
			if e.store.RemoveTag(id, tag) {
				after, _ := e.store.Get(id)
				e.index.Update(id, before.Tags, after.Tags)
			}
		default:
			return fmt.Errorf("%w: replay encountered a record with no recognized variant", catalogerr.ErrInternal)
		}
	}
	e.logger.Info().Int("records", len(records)).Msg("replay complete")
	return nil
}

// ---- reads ----

// Get returns the media with id, if live.
func (e *Engine) Get(id string) (store.Media, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Get(id)
}

// GetAll returns one page of media in stable order.
func (e *Engine) GetAll(pageSize, pageIndex int) []store.Media {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.GetAll(pageSize, pageIndex)
}

// Export returns every live media, unpaginated, for full catalog export.
func (e *Engine) Export() []store.Media {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.All()
}

// GetUntagged returns one page of untagged media.
func (e *Engine) GetUntagged(pageSize, pageIndex int) []store.Media {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.GetUntagged(pageSize, pageIndex)
}

// GetNoThumbnail returns one page of media lacking a thumbnail file,
// per hasThumbnail. The predicate itself does file I/O, which is
// deliberately performed outside the lock by the caller when possible;
// here it still runs under the read lock since pagination requires a
// consistent snapshot of the live id set.
func (e *Engine) GetNoThumbnail(pageSize, pageIndex int, hasThumbnail func(string) bool) []store.Media {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.GetNoThumbnail(pageSize, pageIndex, hasThumbnail)
}

// GetRandom returns a uniformly chosen live media.
func (e *Engine) GetRandom() (store.Media, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.GetRandom()
}

// Search returns media ids matching every token of a canonical query
// string (see package slugs), capped at limit, resolved to full Media
// records in ranked order.
func (e *Engine) Search(tokens []string, limit int) []store.Media {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := e.index.Search(tokens, limit)
	out := make([]store.Media, 0, len(ids))
	for _, id := range ids {
		if m, ok := e.store.Get(id); ok {
			out = append(out, m)
		}
	}
	return out
}

// Autocomplete returns ranked completions for a canonical, possibly
// trailing-space-terminated query.
func (e *Engine) Autocomplete(tokens []string, limit int) []tagindex.Completion {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.index.Autocomplete(tokens, limit)
}

// ---- mutations ----

// CreateMedia inserts media, or returns the existing record if its id is
// already known. Returns store.Inserted / store.Existing.
func (e *Engine) CreateMedia(m store.Media) (store.Media, store.InsertResult, error) {
	if m.ID == "" {
		return store.Media{}, 0, catalogerr.NewValidation("id", "media id must not be empty")
	}
	if m.Tags == nil {
		m.Tags = []string{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	stored, res := e.store.Create(m)
	if res == store.Existing {
		return stored, res, nil
	}

	e.index.Insert(stored.ID, stored.Tags)
	if err := e.log.Append(walog.Record{CreateMedia: &walog.CreateMediaOp{Media: stored}}); err != nil {
		e.index.Remove(stored.ID, stored.Tags)
		e.store.Delete(stored.ID)
		e.logger.Error().Err(err).Str("media_id", stored.ID).Msg("rolled back create after log append failure")
		return store.Media{}, 0, err
	}
	e.logger.Debug().Str("media_id", stored.ID).Msg("created media")
	return stored, res, nil
}

// DeleteMedia removes id if present and returns its pre-image.
func (e *Engine) DeleteMedia(id string) (store.Media, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, ok := e.store.Delete(id)
	if !ok {
		return store.Media{}, false, nil
	}
	e.index.Remove(m.ID, m.Tags)

	if err := e.log.Append(walog.Record{DeleteMedia: &walog.DeleteMediaOp{MediaID: id}}); err != nil {
		e.store.Create(m)
		e.index.Insert(m.ID, m.Tags)
		e.logger.Error().Err(err).Str("media_id", id).Msg("rolled back delete after log append failure")
		return store.Media{}, false, err
	}
	e.logger.Debug().Str("media_id", id).Msg("deleted media")
	return m, true, nil
}

// AddTag normalizes name to a slug and appends it to id's tag set. A
// no-op (tag already present) returns the current media without touching
// the Log.
func (e *Engine) AddTag(id, name string) (store.Media, error) {
	tag := slugs.Slugify(name)
	if tag == "" {
		return store.Media{}, catalogerr.NewValidation("name", "tag must not be empty")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	before, ok := e.store.Get(id)
	if !ok {
		return store.Media{}, fmt.Errorf("media %q: %w", id, catalogerr.ErrNotFound)
	}

	if !e.store.AddTag(id, tag) {
		return before, nil
	}
	after, _ := e.store.Get(id)
	e.index.Update(id, before.Tags, after.Tags)

	if err := e.log.Append(walog.Record{AddTagToMedia: &walog.AddTagToMediaOp{MediaID: id, Tag: tag}}); err != nil {
		e.store.RemoveTag(id, tag)
		e.index.Update(id, after.Tags, before.Tags)
		e.logger.Error().Err(err).Str("media_id", id).Str("tag", tag).Msg("rolled back add-tag after log append failure")
		return store.Media{}, err
	}
	e.logger.Debug().Str("media_id", id).Str("tag", tag).Msg("added tag")
	return after, nil
}

// RemoveTag normalizes name to a slug and removes it from id's tag set. A
// no-op (tag absent) returns the current media without touching the Log.
func (e *Engine) RemoveTag(id, name string) (store.Media, error) {
	tag := slugs.Slugify(name)
	if tag == "" {
		return store.Media{}, catalogerr.NewValidation("name", "tag must not be empty")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	before, ok := e.store.Get(id)
	if !ok {
		return store.Media{}, fmt.Errorf("media %q: %w", id, catalogerr.ErrNotFound)
	}

	if !e.store.RemoveTag(id, tag) {
		return before, nil
	}
	after, _ := e.store.Get(id)
	e.index.Update(id, before.Tags, after.Tags)

	if err := e.log.Append(walog.Record{RemoveTagFromMedia: &walog.RemoveTagFromMediaOp{MediaID: id, Tag: tag}}); err != nil {
		e.store.AddTag(id, tag)
		e.index.Update(id, after.Tags, before.Tags)
		e.logger.Error().Err(err).Str("media_id", id).Str("tag", tag).Msg("rolled back remove-tag after log append failure")
		return store.Media{}, err
	}
	e.logger.Debug().Str("media_id", id).Str("tag", tag).Msg("removed tag")
	return after, nil
}
