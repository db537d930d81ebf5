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

package store

import "math/rand/v2"

// Store is the in-memory mapping MediaId -> Media. It is not safe for
// concurrent use on its own; the Engine serializes access to it under a
// single reader-writer lock shared with the TagIndex (see package engine).
type Store struct {
	byID map[string]Media
	// order preserves stable insertion order for pagination.
	order []string
}

// New returns an empty Store.
func New() *Store {
	return &Store{byID: make(map[string]Media)}
}

// InsertResult reports whether Create inserted a new record or found an
// existing one.
type InsertResult int

const (
	Inserted InsertResult = iota
	Existing
)

// Get returns a snapshot copy of the media with id, if present.
func (s *Store) Get(id string) (Media, bool) {
	m, ok := s.byID[id]
	if !ok {
		return Media{}, false
	}
	return m.Clone(), true
}

// Len returns the number of live media.
func (s *Store) Len() int {
	return len(s.order)
}

func clampPageSize(pageSize int) int {
	switch {
	case pageSize < 1:
		return 1
	case pageSize > 50:
		return 50
	default:
		return pageSize
	}
}

func paginate(ids []string, pageSize, pageIndex int) []string {
	pageSize = clampPageSize(pageSize)
	if pageIndex < 0 {
		pageIndex = 0
	}
	start := pageIndex * pageSize
	if start >= len(ids) {
		return nil
	}
	end := start + pageSize
	if end > len(ids) {
		end = len(ids)
	}
	return ids[start:end]
}

// All returns every live media in stable insertion order, unpaginated.
// Used for full export, where the [1,50] page clamp of GetAll does not
// apply.
func (s *Store) All() []Media {
	out := make([]Media, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].Clone())
	}
	return out
}

// GetAll returns one page of media in stable insertion order.
func (s *Store) GetAll(pageSize, pageIndex int) []Media {
	page := paginate(s.order, pageSize, pageIndex)
	out := make([]Media, 0, len(page))
	for _, id := range page {
		out = append(out, s.byID[id].Clone())
	}
	return out
}

// GetUntagged returns one page of media with an empty tag set.
func (s *Store) GetUntagged(pageSize, pageIndex int) []Media {
	var ids []string
	for _, id := range s.order {
		if len(s.byID[id].Tags) == 0 {
			ids = append(ids, id)
		}
	}
	page := paginate(ids, pageSize, pageIndex)
	out := make([]Media, 0, len(page))
	for _, id := range page {
		out = append(out, s.byID[id].Clone())
	}
	return out
}

// GetNoThumbnail returns one page of media for which hasThumbnail reports
// false. Thumbnail existence is a filesystem concern owned by FileVault;
// Store only knows how to filter and paginate given the predicate.
func (s *Store) GetNoThumbnail(pageSize, pageIndex int, hasThumbnail func(mediaID string) bool) []Media {
	var ids []string
	for _, id := range s.order {
		if !hasThumbnail(id) {
			ids = append(ids, id)
		}
	}
	page := paginate(ids, pageSize, pageIndex)
	out := make([]Media, 0, len(page))
	for _, id := range page {
		out = append(out, s.byID[id].Clone())
	}
	return out
}

// GetRandom returns a uniformly chosen live media, or false if the store is
// empty.
func (s *Store) GetRandom() (Media, bool) {
	if len(s.order) == 0 {
		return Media{}, false
	}
	id := s.order[rand.IntN(len(s.order))]
	return s.byID[id].Clone(), true
}

// Create inserts media if its id is new; otherwise it is a no-op and the
// existing record is returned.
func (s *Store) Create(m Media) (Media, InsertResult) {
	if existing, ok := s.byID[m.ID]; ok {
		return existing.Clone(), Existing
	}
	stored := m.Clone()
	if stored.Tags == nil {
		stored.Tags = []string{}
	}
	s.byID[m.ID] = stored
	s.order = append(s.order, m.ID)
	return stored.Clone(), Inserted
}

// Delete removes and returns the prior record, or false if absent.
func (s *Store) Delete(id string) (Media, bool) {
	m, ok := s.byID[id]
	if !ok {
		return Media{}, false
	}
	delete(s.byID, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return m.Clone(), true
}

// AddTag appends tag to id's tag set. It returns true only if the tag was
// not already present.
func (s *Store) AddTag(id, tag string) bool {
	m, ok := s.byID[id]
	if !ok {
		return false
	}
	if m.HasTag(tag) {
		return false
	}
	m.Tags = append(append([]string(nil), m.Tags...), tag)
	s.byID[id] = m
	return true
}

// RemoveTag removes tag from id's tag set, preserving the order of the
// remainder. It returns true only if the tag was present.
func (s *Store) RemoveTag(id, tag string) bool {
	m, ok := s.byID[id]
	if !ok {
		return false
	}
	if !m.HasTag(tag) {
		return false
	}
	next := make([]string, 0, len(m.Tags)-1)
	for _, t := range m.Tags {
		if t != tag {
			next = append(next, t)
		}
	}
	m.Tags = next
	s.byID[id] = m
	return true
}
