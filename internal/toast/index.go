package toast

// coalescingIndex maps a dedupe key to the ID of the active or queued item
// that carries it. At most one item per key is tracked.
type coalescingIndex struct {
	byKey map[string]ID
}

func newCoalescingIndex() *coalescingIndex {
	return &coalescingIndex{byKey: map[string]ID{}}
}

func (x *coalescingIndex) lookup(key string) (ID, bool) {
	if key == "" {
		return "", false
	}
	id, ok := x.byKey[key]
	return id, ok
}

func (x *coalescingIndex) add(it Item) {
	if it.Options.DedupeKey == "" {
		return
	}
	x.byKey[it.Options.DedupeKey] = it.ID
}

// remove drops the entry for it, but only while the key still points at it.
func (x *coalescingIndex) remove(it Item) {
	key := it.Options.DedupeKey
	if key == "" {
		return
	}
	if cur, ok := x.byKey[key]; ok && cur == it.ID {
		delete(x.byKey, key)
	}
}

// rekey moves the entry of an item whose options changed by a merge.
func (x *coalescingIndex) rekey(before, after Item) {
	x.remove(before)
	x.add(after)
}

func (x *coalescingIndex) reset() { clear(x.byKey) }

func (x *coalescingIndex) len() int { return len(x.byKey) }
