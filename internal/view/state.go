package view

import (
	"sort"

	"cute-chat/internal/domain/message"
)

// State is the local cache of a conversation: the displayed list, newest first, and the
// pagination cursor. Every function here returns a new State and never mutates its input.
//
// Exhausted is set once a page came back empty. It is sticky: later snapshots never hand
// the pager a cursor again.
type State struct {
	Messages  []message.Record
	Cursor    *message.Cursor
	Loaded    bool
	Exhausted bool
}

// Normalize sorts records newest first and keeps only the first record seen for each id.
// Records with equal timestamps keep their relative input order.
func Normalize(records []message.Record) []message.Record {
	out := make([]message.Record, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// ApplySnapshot rebuilds the live window from a snapshot of the newest documents.
//
// The window itself is replaced wholesale. When the snapshot is full (it may not reach the
// start of the conversation), confirmed records strictly older than its oldest entry were
// loaded by the pager and are kept, together with the cursor that points past them.
// Outstanding local sends survive until their id shows up in a snapshot.
func ApplySnapshot(prev State, snapshot []message.Record, cursor *message.Cursor, full bool) State {
	records := make([]message.Record, 0, len(snapshot)+len(prev.Messages))
	records = append(records, snapshot...)

	if full && len(snapshot) > 0 {
		oldest := snapshot[len(snapshot)-1]
		retained := false
		for _, r := range prev.Messages {
			if r.Delivery.Outstanding() || !olderThan(r, oldest) {
				continue
			}
			records = append(records, r)
			retained = true
		}
		if retained {
			cursor = prev.Cursor
		}
	}

	for _, r := range prev.Messages {
		if r.Delivery.Outstanding() {
			records = append(records, r)
		}
	}

	if prev.Exhausted {
		cursor = nil
	}
	return State{Messages: Normalize(records), Cursor: cursor, Loaded: true, Exhausted: prev.Exhausted}
}

// MergePage adds a page of older records to the list. Ids already present are dropped.
// cursor is the oldest document of the fetched page, nil once history is exhausted.
func MergePage(prev State, page []message.Record, cursor *message.Cursor) State {
	existing := make(map[string]struct{}, len(prev.Messages))
	for _, r := range prev.Messages {
		existing[r.ID] = struct{}{}
	}

	records := make([]message.Record, 0, len(prev.Messages)+len(page))
	records = append(records, prev.Messages...)
	for _, r := range page {
		if _, dup := existing[r.ID]; dup {
			continue
		}
		records = append(records, r)
	}

	exhausted := prev.Exhausted || cursor == nil
	if exhausted {
		cursor = nil
	}
	return State{Messages: Normalize(records), Cursor: cursor, Loaded: prev.Loaded, Exhausted: exhausted}
}

// UpsertOutstanding adds a local record, or replaces the outstanding record with the same
// id. A confirmed record with that id wins and the state is returned unchanged.
func UpsertOutstanding(prev State, rec message.Record) State {
	records := make([]message.Record, 0, len(prev.Messages)+1)
	replaced := false
	for _, r := range prev.Messages {
		if r.ID != rec.ID {
			records = append(records, r)
			continue
		}
		if !r.Delivery.Outstanding() {
			return prev
		}
		records = append(records, rec)
		replaced = true
	}
	if !replaced {
		records = append(records, rec)
	}
	return State{Messages: Normalize(records), Cursor: prev.Cursor, Loaded: prev.Loaded, Exhausted: prev.Exhausted}
}

// SetDelivery moves an outstanding record to state. Confirmed records are left alone.
func SetDelivery(prev State, id string, state message.DeliveryState) State {
	records := make([]message.Record, len(prev.Messages))
	copy(records, prev.Messages)
	for i, r := range records {
		if r.ID == id && r.Delivery.Outstanding() {
			records[i].Delivery = state
		}
	}
	return State{Messages: records, Cursor: prev.Cursor, Loaded: prev.Loaded, Exhausted: prev.Exhausted}
}

// RemoveOutstanding drops an abandoned local record.
func RemoveOutstanding(prev State, id string) State {
	records := make([]message.Record, 0, len(prev.Messages))
	for _, r := range prev.Messages {
		if r.ID == id && r.Delivery.Outstanding() {
			continue
		}
		records = append(records, r)
	}
	return State{Messages: records, Cursor: prev.Cursor, Loaded: prev.Loaded, Exhausted: prev.Exhausted}
}

// olderThan orders records the way the backend orders documents: createdAt, then doc id.
func olderThan(r, than message.Record) bool {
	if !r.CreatedAt.Equal(than.CreatedAt) {
		return r.CreatedAt.Before(than.CreatedAt)
	}
	return r.DocID < than.DocID
}
