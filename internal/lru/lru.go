// Package lru tracks most-recently-used ordering over record ids. It mirrors
// recency for the temp-file manager; the eviction policies rank victims by the
// persisted access timestamp, with this index providing O(1) recency queries.
package lru

import "container/list"

// Index is a recency list over string ids. The zero value is not usable; use
// New. Index is not safe for concurrent use.
type Index struct {
	order *list.List
	items map[string]*list.Element
}

// New returns an empty Index.
func New() *Index {
	return &Index{
		order: list.New(),
		items: make(map[string]*list.Element),
	}
}

// Touch marks id as most recently used, inserting it if absent.
func (i *Index) Touch(id string) {
	if el, ok := i.items[id]; ok {
		i.order.MoveToFront(el)
		return
	}
	i.items[id] = i.order.PushFront(id)
}

// Remove drops id from the index. Removing an absent id is a no-op.
func (i *Index) Remove(id string) {
	el, ok := i.items[id]
	if !ok {
		return
	}
	i.order.Remove(el)
	delete(i.items, id)
}

// Victim returns the least-recently-used id, or "" and false when empty.
func (i *Index) Victim() (string, bool) {
	last := i.order.Back()
	if last == nil {
		return "", false
	}
	return last.Value.(string), true
}

// Contains reports whether id is tracked.
func (i *Index) Contains(id string) bool {
	_, ok := i.items[id]
	return ok
}

// Len returns the number of tracked ids.
func (i *Index) Len() int {
	return len(i.items)
}
