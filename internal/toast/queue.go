package toast

import "slices"

// admissionQueue holds waiting items, highest priority first and FIFO within
// a priority. Capacity is enforced by the caller.
type admissionQueue struct {
	items []Item
}

func (q *admissionQueue) len() int { return len(q.items) }

// insert places it after every item of equal or higher priority.
func (q *admissionQueue) insert(it Item) {
	pos := len(q.items)
	for i := len(q.items) - 1; i >= 0; i-- {
		if q.items[i].Options.Priority >= it.Options.Priority {
			break
		}
		pos = i
	}
	q.items = slices.Insert(q.items, pos, it)
}

func (q *admissionQueue) pushFront(it Item) {
	q.items = slices.Insert(q.items, 0, it)
}

func (q *admissionQueue) popFront() (Item, bool) {
	if len(q.items) == 0 {
		return Item{}, false
	}
	it := q.items[0]
	q.items[0] = Item{}
	q.items = q.items[1:]
	return it, true
}

// popBack removes the last (lowest priority, newest) item.
func (q *admissionQueue) popBack() (Item, bool) {
	n := len(q.items)
	if n == 0 {
		return Item{}, false
	}
	it := q.items[n-1]
	q.items = q.items[:n-1]
	return it, true
}

func (q *admissionQueue) indexOf(id ID) int {
	return slices.IndexFunc(q.items, func(it Item) bool { return it.ID == id })
}

func (q *admissionQueue) get(id ID) (Item, bool) {
	if i := q.indexOf(id); i >= 0 {
		return q.items[i], true
	}
	return Item{}, false
}

// replace swaps the item with the same ID in place.
func (q *admissionQueue) replace(it Item) bool {
	i := q.indexOf(it.ID)
	if i < 0 {
		return false
	}
	q.items[i] = it
	return true
}

func (q *admissionQueue) remove(id ID) (Item, bool) {
	i := q.indexOf(id)
	if i < 0 {
		return Item{}, false
	}
	it := q.items[i]
	q.items = slices.Delete(q.items, i, i+1)
	return it, true
}

// drain empties the queue and returns its former contents in order.
func (q *admissionQueue) drain() []Item {
	out := q.items
	q.items = nil
	return out
}

func (q *admissionQueue) snapshot() []Item {
	return slices.Clone(q.items)
}
