package reminder

import (
	"slices"
)

// Index maps recipient keys to FIFO reminder lists.
//
// Keys iterate in first-insertion order. Index is not safe for concurrent
// use; Store serializes access to the live index.
type Index struct {
	order   []string
	entries map[string][]Reminder
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{entries: make(map[string][]Reminder)}
}

// Append queues item at the tail of key's list.
func (i *Index) Append(key string, item Reminder) {
	if _, exists := i.entries[key]; !exists {
		i.order = append(i.order, key)
	}
	i.entries[key] = append(i.entries[key], item)
}

// Take removes key and returns its reminders in deposit order.
func (i *Index) Take(key string) ([]Reminder, bool) {
	items, exists := i.entries[key]
	if !exists {
		return nil, false
	}
	delete(i.entries, key)
	i.order = slices.DeleteFunc(i.order, func(existing string) bool {
		return existing == key
	})

	return items, true
}

// Keys returns recipient keys in first-insertion order.
func (i *Index) Keys() []string {
	return slices.Clone(i.order)
}

// Reminders returns a copy of key's queue.
func (i *Index) Reminders(key string) []Reminder {
	return slices.Clone(i.entries[key])
}

// Len returns the number of queued reminders across all keys.
func (i *Index) Len() int {
	total := 0
	for _, items := range i.entries {
		total += len(items)
	}

	return total
}

// Clone returns a deep copy.
func (i *Index) Clone() *Index {
	cloned := &Index{
		order:   slices.Clone(i.order),
		entries: make(map[string][]Reminder, len(i.entries)),
	}
	for key, items := range i.entries {
		cloned.entries[key] = slices.Clone(items)
	}

	return cloned
}
