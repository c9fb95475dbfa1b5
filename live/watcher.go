package live

import (
	"sync"

	"github.com/mangoautomation/dashboard-data-apis/log"
)

// Watcher keeps a single item in sync with its live notifications.
type Watcher[T any] struct {
	xid      string
	logger   log.Logger
	onChange func(value T, deleted bool)

	mutex   sync.Mutex
	value   T
	deleted bool
}

// NewWatcher watches the item identified by xid, onChange may be nil.
func NewWatcher[T any](xid string, initial T, logger log.Logger, onChange func(value T, deleted bool)) *Watcher[T] {
	return &Watcher[T]{xid: xid, value: initial, logger: logger, onChange: onChange}
}

// Handle applies an event, it can be passed directly to Client.Subscribe.
func (w *Watcher[T]) Handle(event Event) {
	if event.XID != w.xid {
		return
	}

	w.mutex.Lock()
	switch event.Type {
	case Delete:
		w.deleted = true
	default:
		var updated T
		if err := event.Decode(&updated); err != nil {
			w.mutex.Unlock()
			w.logger.Warn("unable to decode live update", "xid", event.XID, "error", err)
			return
		}
		w.value = updated
		w.deleted = false
	}
	value, deleted := w.value, w.deleted
	w.mutex.Unlock()

	if w.onChange != nil {
		w.onChange(value, deleted)
	}
}

// Value returns the latest known value and whether the item has been deleted.
func (w *Watcher[T]) Value() (T, bool) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.value, w.deleted
}

// Dispatch decodes an event into T and routes it to update or remove. Add events are treated as
// updates. Decoding errors are returned and nothing is called.
func Dispatch[T any](event Event, update func(xid string, item T), remove func(xid string)) error {
	if event.Type == Delete {
		remove(event.XID)
		return nil
	}
	var item T
	if err := event.Decode(&item); err != nil {
		return err
	}
	update(event.XID, item)
	return nil
}
