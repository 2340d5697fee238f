package view

import (
	"context"
	"errors"
	"fmt"

	"cute-chat/internal/domain/message"
	cutechat_errors "cute-chat/pkg/errors"
)

// Send validates and persists a draft. The draft is shown at once as a pending record and
// becomes confirmed when a snapshot carries its id. A malformed draft is dropped with a
// log line and reported as ErrInvalidDraft; it never reaches the rendered list.
//
// When the write fails the Confirmer decides: retry sends the identical draft again,
// cancel removes the pending record and Send returns ErrSendCancelled.
func (v *View) Send(ctx context.Context, draft message.Draft) error {
	if err := draft.Validate(); err != nil {
		v.log.Warnf("dropping outgoing draft %q: %v", draft.ID, err)
		v.metrics.Send("invalid")
		return err
	}
	if !v.update(func(s State) State { return UpsertOutstanding(s, draft.Record()) }) {
		return cutechat_errors.ErrViewClosed
	}

	for {
		err := v.persist(ctx, draft)
		if err == nil {
			v.metrics.Send("sent")
			return nil
		}

		v.log.Errorf("send message %s: %v", draft.ID, err)
		v.metrics.Send("failed")
		if !v.update(func(s State) State { return SetDelivery(s, draft.ID, message.DeliveryFailed) }) {
			return cutechat_errors.ErrViewClosed
		}

		if !v.confirmRetry(ctx, draft, err) {
			v.metrics.Send("cancelled")
			v.update(func(s State) State { return RemoveOutstanding(s, draft.ID) })
			return fmt.Errorf("%w: %v", cutechat_errors.ErrSendCancelled, err)
		}

		v.metrics.Send("retried")
		if !v.update(func(s State) State { return SetDelivery(s, draft.ID, message.DeliveryPending) }) {
			return cutechat_errors.ErrViewClosed
		}
	}
}

// SendImage uploads the file at localPath and sends draft with the resulting URL.
func (v *View) SendImage(ctx context.Context, localPath string, draft message.Draft) error {
	if v.opts.Uploader == nil {
		return cutechat_errors.ErrStorageNotConfigured
	}
	v.beginLoading()
	url, err := v.opts.Uploader.Upload(ctx, localPath)
	v.endLoading()
	if err != nil {
		v.log.Errorf("upload %s: %v", localPath, err)
		return fmt.Errorf("upload attachment: %w", err)
	}
	draft.Image = url
	return v.Send(ctx, draft)
}

// Attach runs the host's picker and sends the chosen file as an image. A dismissed picker
// sends nothing.
func (v *View) Attach(ctx context.Context, draft message.Draft) error {
	if v.opts.PickAttachment == nil {
		return fmt.Errorf("%w: no attachment picker configured", cutechat_errors.ErrInvalidInput)
	}
	path, err := v.opts.PickAttachment(ctx)
	if err != nil {
		return fmt.Errorf("pick attachment: %w", err)
	}
	if path == "" {
		return nil
	}
	return v.SendImage(ctx, path, draft)
}

func (v *View) persist(ctx context.Context, draft message.Draft) error {
	if v.opts.SendHandler != nil {
		return v.opts.SendHandler(ctx, draft)
	}

	doc := draft.Document(v.opts.ConversationID)
	var attachment *message.Attachment
	if draft.Image != "" {
		attachment = &message.Attachment{ConversationID: v.opts.ConversationID, URL: draft.Image}
	}
	_, err := v.opts.Messages.Send(ctx, v.opts.ConversationID, doc, attachment)
	if errors.Is(err, cutechat_errors.ErrAlreadyExists) {
		return nil
	}
	return err
}

func (v *View) confirmRetry(ctx context.Context, draft message.Draft, err error) bool {
	if v.opts.Confirm == nil || ctx.Err() != nil || v.isClosed() {
		return false
	}
	return v.opts.Confirm.ConfirmRetry(ctx, draft, err)
}
