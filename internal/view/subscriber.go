package view

import (
	"context"
	"fmt"

	"cute-chat/internal/domain/message"
	cutechat_errors "cute-chat/pkg/errors"
)

// Mount opens the live subscription to the newest page of the conversation. A view is
// mounted at most once; it is unmounted by Unmount or when ctx is done.
func (v *View) Mount(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return cutechat_errors.ErrViewClosed
	}
	if v.mounted {
		v.mu.Unlock()
		return cutechat_errors.ErrAlreadyMounted
	}
	v.mounted = true
	v.mu.Unlock()

	v.beginLoading()
	cancel, err := v.opts.Messages.Subscribe(v.ctx, v.opts.ConversationID, v.opts.PageSize, v.onSnapshot, v.onSubscriptionError)
	if err != nil {
		v.endLoading()
		v.mu.Lock()
		v.mounted = false
		v.mu.Unlock()
		return fmt.Errorf("subscribe to %s: %w", v.opts.ConversationID, err)
	}

	v.mu.Lock()
	v.cancel = cancel
	closed := v.closed
	v.mu.Unlock()
	if closed {
		cancel()
		return cutechat_errors.ErrViewClosed
	}

	v.metrics.ViewMounted()
	context.AfterFunc(ctx, v.Unmount)
	v.log.Debugf("subscribed to newest %d messages", v.opts.PageSize)
	return nil
}

// Unmount cancels the subscription. Results of fetches still in flight are dropped.
// It is safe to call more than once.
func (v *View) Unmount() {
	v.closeOnce.Do(func() {
		v.mu.Lock()
		v.closed = true
		cancel := v.cancel
		mounted := v.mounted && cancel != nil
		v.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		v.stop()
		if mounted {
			v.metrics.ViewUnmounted()
		}
		v.log.Debugf("unmounted")
	})
}

func (v *View) onSnapshot(docs []message.Document, full bool) {
	if v.isClosed() {
		return
	}
	records := v.translator.Translate(v.ctx, v.opts.ConversationID, docs)
	cursor := message.CursorOf(docs)

	first := false
	applied := v.update(func(s State) State {
		first = !s.Loaded
		return ApplySnapshot(s, records, cursor, full)
	})
	if !applied {
		return
	}
	if first {
		v.endLoading()
	}
	v.metrics.Snapshot()
	v.markRead(records, true)
}

// onSubscriptionError keeps whatever was last displayed. There is no resubscription; the
// host remounts to recover.
func (v *View) onSubscriptionError(err error) {
	if v.isClosed() {
		return
	}
	v.log.Errorf("subscription delivery failed: %v", err)
	v.metrics.SnapshotError()

	v.mu.Lock()
	loaded := v.state.Loaded
	v.mu.Unlock()
	if !loaded {
		v.endLoading()
	}
}
