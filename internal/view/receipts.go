package view

import (
	"context"
	"errors"

	"cute-chat/internal/domain/message"
	cutechat_errors "cute-chat/pkg/errors"
)

// markRead records the viewer's receipt on every record that lacks it, in one batched
// write, and on the summary's last message when withSummary is set. It runs in the
// background; failures are logged and retried on the next snapshot.
func (v *View) markRead(records []message.Record, withSummary bool) {
	viewer := v.opts.Viewer.ID

	v.mu.Lock()
	var docIDs []string
	for _, r := range records {
		if r.DocID == "" || r.ReadBy(viewer) {
			continue
		}
		if _, requested := v.receipts[r.DocID]; requested {
			continue
		}
		v.receipts[r.DocID] = struct{}{}
		docIDs = append(docIDs, r.DocID)
	}
	v.mu.Unlock()

	withSummary = withSummary && v.opts.Conversations != nil
	if len(docIDs) == 0 && !withSummary {
		return
	}

	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		ctx, cancel := context.WithTimeout(v.ctx, v.opts.ReceiptTimeout)
		defer cancel()

		if len(docIDs) > 0 {
			v.writeMessageReceipts(ctx, docIDs)
		}
		if withSummary {
			v.writeSummaryReceipt(ctx)
		}
	}()
}

func (v *View) writeMessageReceipts(ctx context.Context, docIDs []string) {
	err := v.opts.Messages.MarkRead(ctx, v.opts.ConversationID, docIDs, v.opts.Viewer.ID)
	if err == nil {
		v.metrics.Receipt("messages", "ok")
		return
	}
	v.metrics.Receipt("messages", "error")
	if !v.isClosed() {
		v.log.Warnf("mark %d messages read: %v", len(docIDs), err)
	}

	v.mu.Lock()
	for _, id := range docIDs {
		delete(v.receipts, id)
	}
	v.mu.Unlock()
}

func (v *View) writeSummaryReceipt(ctx context.Context) {
	summary, err := v.opts.Conversations.GetSummary(ctx, v.opts.ConversationID)
	if err != nil {
		if !errors.Is(err, cutechat_errors.ErrNotFound) {
			v.metrics.Receipt("summary", "error")
			v.log.Warnf("read conversation summary: %v", err)
		}
		return
	}
	if summary.ReadBy(v.opts.Viewer.ID) {
		return
	}
	if err := v.opts.Conversations.MarkLastMessageRead(ctx, v.opts.ConversationID, v.opts.Viewer.ID); err != nil {
		v.metrics.Receipt("summary", "error")
		v.log.Warnf("mark last message read: %v", err)
		return
	}
	v.metrics.Receipt("summary", "ok")
}

// Wait blocks until receipt writes started so far have finished.
func (v *View) Wait() {
	v.wg.Wait()
}
