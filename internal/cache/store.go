// Package cache implements the process-wide entity cache: keyed storage of
// server-derived state with explicit put/patch/invalidate/remove semantics
// and change notification. It is the single source of truth for entity
// state; fetch completions, mutation results, bulk patches and push deltas
// all land here through one serialized update path per store.
package cache

import (
	"sync"

	"github.com/achilleasntalagiorgos1997/pm-dashboard/internal/domain/project"
)

type entry struct {
	value any
	stale bool
}

type subscription struct {
	prefix string
	fn     func(Key)
}

// Store is the entity cache. All methods are safe for concurrent use; every
// read-modify-write runs under one mutex so partial writes can never
// interleave. There is no TTL; staleness is event-driven only.
type Store struct {
	mu      sync.Mutex
	entries map[Key]entry

	subMu   sync.Mutex
	subs    map[int64]subscription
	nextSub int64
}

// New creates an empty store.
func New() *Store {
	return &Store{
		entries: make(map[Key]entry),
		subs:    make(map[int64]subscription),
	}
}

// Get returns the fresh value stored under key. Entries marked stale report
// absent, forcing the next read through to a fetch.
func (s *Store) Get(key Key) (any, bool) {
	s.mu.Lock()
	e, ok := s.entries[key]
	s.mu.Unlock()

	if !ok || e.stale {
		missesTotal.WithLabelValues(key.kind()).Inc()
		return nil, false
	}
	hitsTotal.WithLabelValues(key.kind()).Inc()
	return e.value, true
}

// Peek returns the stored value even when the entry is stale. Push-side
// array surgery uses it to keep invalidated list pages coherent until they
// are refetched.
func (s *Store) Peek(key Key) (value any, ok, stale bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false, false
	}
	return e.value, true, e.stale
}

// Put stores value under key and clears any stale mark. A project entry is
// never overwritten by a representation claiming an equal-or-older version
// than the one it holds; push-sourced writes bypass that guard via
// PutAuthoritative.
func (s *Store) Put(key Key, value any) {
	s.put(key, value, false)
}

// PutAuthoritative stores value under key regardless of the version the
// cache currently holds. The server is the arbiter of recency for push
// deltas and reconciliation refetches, so those writes always win.
func (s *Store) PutAuthoritative(key Key, value any) {
	s.put(key, value, true)
}

func (s *Store) put(key Key, value any, authoritative bool) {
	s.mu.Lock()
	if !authoritative {
		if prev, ok := s.entries[key]; ok {
			if held, ok := prev.value.(project.Project); ok {
				if next, ok := value.(project.Project); ok && next.Version <= held.Version {
					s.mu.Unlock()
					return
				}
			}
		}
	}
	s.entries[key] = entry{value: value}
	s.mu.Unlock()

	s.notify(key)
}

// PatchProject shallow-merges a field patch into the cached detail entry
// for id and returns the merged value. It is a no-op when the project is
// not cached. The merge is authoritative: push patches are last-write-wins
// per field regardless of the held version.
func (s *Store) PatchProject(id int64, patch map[string]any) (project.Project, bool) {
	key := ProjectKey(id)

	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		return project.Project{}, false
	}
	held, ok := e.value.(project.Project)
	if !ok {
		s.mu.Unlock()
		return project.Project{}, false
	}
	merged := project.ApplyPatch(held, patch)
	s.entries[key] = entry{value: merged, stale: e.stale}
	s.mu.Unlock()

	s.notify(key)
	return merged, true
}

// MutateProject applies fn to the cached detail entry for id under the
// store lock, replacing the entry with fn's result. Returns false when the
// project is not cached. fn must not call back into the store.
func (s *Store) MutateProject(id int64, fn func(project.Project) project.Project) bool {
	key := ProjectKey(id)

	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		return false
	}
	held, ok := e.value.(project.Project)
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.entries[key] = entry{value: fn(held.Clone()), stale: e.stale}
	s.mu.Unlock()

	s.notify(key)
	return true
}

// MutateProjectInLists applies fn to the matching row of every cached list
// page, stale pages included.
func (s *Store) MutateProjectInLists(id int64, fn func(project.Project) project.Project) {
	s.mu.Lock()
	var touched []Key
	for key, e := range s.entries {
		if !key.HasPrefix(PrefixList) {
			continue
		}
		page, ok := e.value.(project.ListResult)
		if !ok {
			continue
		}
		for i := range page.Items {
			if page.Items[i].ID == id {
				page = page.Clone()
				page.Items[i] = fn(page.Items[i])
				s.entries[key] = entry{value: page, stale: e.stale}
				touched = append(touched, key)
				break
			}
		}
	}
	s.mu.Unlock()

	for _, key := range touched {
		s.notify(key)
	}
}

// Remove deletes the entry under key.
func (s *Store) Remove(key Key) {
	s.mu.Lock()
	_, ok := s.entries[key]
	delete(s.entries, key)
	s.mu.Unlock()

	if ok {
		s.notify(key)
	}
}

// Invalidate marks the entry under key stale without dropping its value.
// The next Get misses, forcing a refetch.
func (s *Store) Invalidate(key Key) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if ok && !e.stale {
		s.entries[key] = entry{value: e.value, stale: true}
	}
	s.mu.Unlock()

	if ok {
		invalidationsTotal.WithLabelValues(key.kind()).Inc()
		s.notify(key)
	}
}

// InvalidateLists marks every cached list page stale. Structural events
// (create, recover) cannot be turned into a local patch, so the pages must
// be refetched.
func (s *Store) InvalidateLists() {
	s.mu.Lock()
	var touched []Key
	for key, e := range s.entries {
		if key.HasPrefix(PrefixList) && !e.stale {
			s.entries[key] = entry{value: e.value, stale: true}
			touched = append(touched, key)
		}
	}
	s.mu.Unlock()

	for _, key := range touched {
		invalidationsTotal.WithLabelValues(key.kind()).Inc()
		s.notify(key)
	}
}

// ListKeys returns the keys of all cached list pages, stale ones included.
func (s *Store) ListKeys() []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []Key
	for key := range s.entries {
		if key.HasPrefix(PrefixList) {
			keys = append(keys, key)
		}
	}
	return keys
}

// PatchProjectInLists merges a field patch into the matching row of every
// cached list page, stale pages included, so an open table keeps rendering
// pushed changes while its refetch is pending.
func (s *Store) PatchProjectInLists(id int64, patch map[string]any) {
	s.mu.Lock()
	var touched []Key
	for key, e := range s.entries {
		if !key.HasPrefix(PrefixList) {
			continue
		}
		page, ok := e.value.(project.ListResult)
		if !ok {
			continue
		}
		for i := range page.Items {
			if page.Items[i].ID == id {
				page = page.Clone()
				page.Items[i] = project.ApplyPatch(page.Items[i], patch)
				s.entries[key] = entry{value: page, stale: e.stale}
				touched = append(touched, key)
				break
			}
		}
	}
	s.mu.Unlock()

	for _, key := range touched {
		s.notify(key)
	}
}

// RemoveProjectFromLists drops the row for id from every cached list page
// and decrements its total.
func (s *Store) RemoveProjectFromLists(id int64) {
	s.mu.Lock()
	var touched []Key
	for key, e := range s.entries {
		if !key.HasPrefix(PrefixList) {
			continue
		}
		page, ok := e.value.(project.ListResult)
		if !ok {
			continue
		}
		kept := page.Items[:0:0]
		for _, p := range page.Items {
			if p.ID != id {
				kept = append(kept, p)
			}
		}
		if len(kept) == len(page.Items) {
			continue
		}
		page = project.ListResult{
			Items:    kept,
			Total:    page.Total - 1,
			Page:     page.Page,
			PageSize: page.PageSize,
		}
		s.entries[key] = entry{value: page, stale: e.stale}
		touched = append(touched, key)
	}
	s.mu.Unlock()

	for _, key := range touched {
		s.notify(key)
	}
}

// PrependEvent inserts an event at the head of the cached timeline for its
// project, dedupes by id and restores newest-first order. No-op when the
// timeline is not cached.
func (s *Store) PrependEvent(projectID int64, ev project.EventItem) bool {
	key := EventsKey(projectID)

	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		return false
	}
	events, ok := e.value.([]project.EventItem)
	if !ok {
		s.mu.Unlock()
		return false
	}
	next := make([]project.EventItem, 0, len(events)+1)
	next = append(next, ev)
	for _, existing := range events {
		if existing.ID != ev.ID {
			next = append(next, existing)
		}
	}
	project.SortEventsDesc(next)
	s.entries[key] = entry{value: next, stale: e.stale}
	s.mu.Unlock()

	s.notify(key)
	return true
}

// Subscribe registers fn for every change to keys matching prefix and
// returns the corresponding unsubscribe function. Callbacks run outside the
// store lock, on the goroutine that performed the change, in change order.
func (s *Store) Subscribe(prefix string, fn func(Key)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = subscription{prefix: prefix, fn: fn}
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(key Key) {
	s.subMu.Lock()
	var fns []func(Key)
	for _, sub := range s.subs {
		if sub.prefix == "" || key.HasPrefix(sub.prefix) {
			fns = append(fns, sub.fn)
		}
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(key)
	}
}
