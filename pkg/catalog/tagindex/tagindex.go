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

// Package tagindex maintains the search surface over the tag vocabulary:
// a bidirectional tag<->media posting structure supporting multi-token AND
// search and context-aware prefix/fuzzy autocomplete. It must be kept
// coherent with package store by the Engine after every mutation.
package tagindex

import (
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"
)

// fuzzyPrefixLen is the minimum prefix length at which autocomplete also
// considers edit-distance-based fuzzy candidates, per §4.5.2.
const fuzzyPrefixLen = 3

// exactPrefixLen is the minimum token length at which search treats the
// token as a prefix match rather than requiring exact equality, per §4.5.1.
const exactPrefixLen = 3

// TagIndex is not safe for concurrent use on its own; the Engine serializes
// access to it under the same lock that guards package store.
type TagIndex struct {
	tagToMedia  map[string]map[string]struct{}
	mediaToTags map[string]map[string]struct{}
	seq         map[string]int
	nextSeq     int
}

// New returns an empty TagIndex.
func New() *TagIndex {
	return &TagIndex{
		tagToMedia:  make(map[string]map[string]struct{}),
		mediaToTags: make(map[string]map[string]struct{}),
		seq:         make(map[string]int),
	}
}

// Insert adds tags for id, registering id's existence (for stable ordering)
// even when tags is empty.
func (idx *TagIndex) Insert(id string, tags []string) {
	if _, ok := idx.seq[id]; !ok {
		idx.seq[id] = idx.nextSeq
		idx.nextSeq++
	}
	for _, t := range tags {
		idx.addPosting(t, id)
		idx.addMediaTag(id, t)
	}
}

// Remove drops id and all of its tag postings entirely (used on deletion).
func (idx *TagIndex) Remove(id string, tags []string) {
	for _, t := range tags {
		idx.removePosting(t, id)
	}
	delete(idx.mediaToTags, id)
	delete(idx.seq, id)
}

// Update replaces id's tag set from oldTags to newTags, touching only the
// postings that actually changed.
func (idx *TagIndex) Update(id string, oldTags, newTags []string) {
	if _, ok := idx.seq[id]; !ok {
		idx.seq[id] = idx.nextSeq
		idx.nextSeq++
	}
	oldSet := toSet(oldTags)
	newSet := toSet(newTags)

	for t := range oldSet {
		if _, keep := newSet[t]; !keep {
			idx.removePosting(t, id)
		}
	}
	for t := range newSet {
		if _, had := oldSet[t]; !had {
			idx.addPosting(t, id)
		}
	}

	if len(newSet) == 0 {
		delete(idx.mediaToTags, id)
		return
	}
	idx.mediaToTags[id] = newSet
}

func (idx *TagIndex) addPosting(tag, id string) {
	set, ok := idx.tagToMedia[tag]
	if !ok {
		set = make(map[string]struct{})
		idx.tagToMedia[tag] = set
	}
	set[id] = struct{}{}
}

func (idx *TagIndex) removePosting(tag, id string) {
	set, ok := idx.tagToMedia[tag]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(idx.tagToMedia, tag)
	}
}

func (idx *TagIndex) addMediaTag(id, tag string) {
	set, ok := idx.mediaToTags[id]
	if !ok {
		set = make(map[string]struct{})
		idx.mediaToTags[id] = set
	}
	set[tag] = struct{}{}
}

func toSet(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	return set
}

// PostingCount returns how many media currently carry tag, for tests and
// diagnostics.
func (idx *TagIndex) PostingCount(tag string) int {
	return len(idx.tagToMedia[tag])
}

type searchHit struct {
	id         string
	matchCount int
	exactCount int
	seq        int
}

// Search returns media ids matching every token in tokens (AND semantics),
// ordered by descending distinct-token match count, then descending exact
// match count, then stable insertion order, capped at limit.
func (idx *TagIndex) Search(tokens []string, limit int) []string {
	if len(tokens) == 0 {
		return nil
	}

	hits := make(map[string]*searchHit)
	for _, token := range tokens {
		matched := make(map[string]struct{})
		exact := make(map[string]struct{})
		for tag, postings := range idx.tagToMedia {
			switch {
			case tag == token:
				for id := range postings {
					matched[id] = struct{}{}
					exact[id] = struct{}{}
				}
			case len(token) >= exactPrefixLen && strings.HasPrefix(tag, token):
				for id := range postings {
					matched[id] = struct{}{}
				}
			}
		}
		for id := range matched {
			h, ok := hits[id]
			if !ok {
				h = &searchHit{id: id, seq: idx.seq[id]}
				hits[id] = h
			}
			h.matchCount++
			if _, ok := exact[id]; ok {
				h.exactCount++
			}
		}
	}

	results := make([]*searchHit, 0, len(hits))
	for _, h := range hits {
		if h.matchCount == len(tokens) {
			results = append(results, h)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].matchCount != results[j].matchCount {
			return results[i].matchCount > results[j].matchCount
		}
		if results[i].exactCount != results[j].exactCount {
			return results[i].exactCount > results[j].exactCount
		}
		return results[i].seq < results[j].seq
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	ids := make([]string, len(results))
	for i, h := range results {
		ids[i] = h.id
	}
	return ids
}

// Completion is one (head, last, count) autocomplete suggestion.
type Completion struct {
	Head  []string
	Last  string
	Count int
}

// Autocomplete treats the last element of tokens as the in-progress prefix
// (empty when the caller signalled a trailing space) and the rest as
// context. It returns candidate completions supported by at least one
// media that carries every context token plus the candidate, ordered by
// descending count then ascending candidate string, capped at limit.
func (idx *TagIndex) Autocomplete(tokens []string, limit int) []Completion {
	if len(tokens) == 0 {
		return nil
	}
	context := tokens[:len(tokens)-1]
	prefix := tokens[len(tokens)-1]
	contextSet := toSet(context)

	type cand struct {
		tag   string
		count int
	}
	var results []cand
	for _, tag := range idx.candidateTags(prefix) {
		if _, inContext := contextSet[tag]; inContext {
			continue
		}
		count := idx.countWithContext(tag, context)
		if count >= 1 {
			results = append(results, cand{tag: tag, count: count})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].count != results[j].count {
			return results[i].count > results[j].count
		}
		return results[i].tag < results[j].tag
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	out := make([]Completion, len(results))
	for i, r := range results {
		out[i] = Completion{Head: append([]string(nil), context...), Last: r.tag, Count: r.count}
	}
	return out
}

func (idx *TagIndex) candidateTags(prefix string) []string {
	var out []string
	for tag := range idx.tagToMedia {
		switch {
		case prefix == "":
			out = append(out, tag)
		case strings.HasPrefix(tag, prefix):
			out = append(out, tag)
		case len(prefix) >= fuzzyPrefixLen && edlib.DamerauLevenshteinDistance(prefix, tag) <= 1:
			out = append(out, tag)
		}
	}
	return out
}

func (idx *TagIndex) countWithContext(candidate string, context []string) int {
	postings, ok := idx.tagToMedia[candidate]
	if !ok {
		return 0
	}
	if len(context) == 0 {
		return len(postings)
	}
	count := 0
	for id := range postings {
		supported := true
		for _, t := range context {
			ctxPostings, ok := idx.tagToMedia[t]
			if !ok {
				supported = false
				break
			}
			if _, present := ctxPostings[id]; !present {
				supported = false
				break
			}
		}
		if supported {
			count++
		}
	}
	return count
}
