package view

import (
	"context"
	"fmt"

	"cute-chat/internal/domain/message"
	cutechat_errors "cute-chat/pkg/errors"
)

// LoadEarlier fetches the page of history older than the cursor and merges it at the old
// end of the list. It does nothing before the first snapshot, after history ran out, or
// while another page is loading. A failed fetch leaves the state untouched.
func (v *View) LoadEarlier(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return cutechat_errors.ErrViewClosed
	}
	if !v.state.Loaded || v.state.Exhausted || v.state.Cursor == nil || v.paging {
		v.mu.Unlock()
		return nil
	}
	cursor := *v.state.Cursor
	v.paging = true
	v.mu.Unlock()

	defer func() {
		v.mu.Lock()
		v.paging = false
		v.mu.Unlock()
	}()

	v.beginLoading()
	defer v.endLoading()

	docs, err := v.opts.Messages.ListBefore(ctx, v.opts.ConversationID, cursor, v.opts.PageSize)
	if err != nil {
		v.log.Errorf("load messages before %s: %v", cursor.DocID, err)
		v.metrics.Page("error")
		return fmt.Errorf("load earlier messages: %w", err)
	}

	records := v.translator.Translate(ctx, v.opts.ConversationID, docs)
	next := message.CursorOf(docs)
	if !v.update(func(s State) State { return MergePage(s, records, next) }) {
		return nil
	}

	if len(docs) == 0 {
		v.log.Debugf("history exhausted")
		v.metrics.Page("empty")
		return nil
	}
	v.metrics.Page("loaded")
	v.markRead(records, false)
	return nil
}
