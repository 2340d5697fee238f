package view

import (
	"context"
	"errors"
	"sync"

	"cute-chat/internal/domain/message"
	"cute-chat/internal/domain/user"
	"cute-chat/internal/metrics"
	"cute-chat/internal/repository"
	cutechat_errors "cute-chat/pkg/errors"
	"cute-chat/pkg/logger"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Translator turns backend documents into records. Each document costs a sender lookup
// and an attachment lookup; both fan out across the page with bounded concurrency.
type Translator struct {
	messages repository.MessageRepository
	users    repository.UserRepository
	fanOut   int
	log      *logger.Logger
	metrics  *metrics.Metrics
}

func NewTranslator(messages repository.MessageRepository, users repository.UserRepository, fanOut int, l *logger.Logger, m *metrics.Metrics) *Translator {
	if fanOut <= 0 {
		fanOut = DefaultFanOut
	}
	if l == nil {
		l = logger.Nop()
	}
	return &Translator{messages: messages, users: users, fanOut: fanOut, log: l, metrics: m}
}

// Translate maps a page of documents to records in the same order. It never fails: an
// unresolvable sender yields a system message, a failed attachment lookup falls back to
// the document's own image field.
func (t *Translator) Translate(ctx context.Context, conversationID string, docs []message.Document) []message.Record {
	records := make([]message.Record, len(docs))
	senders := newSenderSet(t.users)

	var g errgroup.Group
	g.SetLimit(t.fanOut)
	for i, doc := range docs {
		g.Go(func() error {
			records[i] = t.translate(ctx, conversationID, doc, senders)
			return nil
		})
	}
	_ = g.Wait()
	return records
}

func (t *Translator) translate(ctx context.Context, conversationID string, doc message.Document, senders *senderSet) message.Record {
	id := doc.MessageID
	if id == "" {
		id = doc.DocID
	}
	rec := message.Record{
		ID:        id,
		DocID:     doc.DocID,
		CreatedAt: doc.CreatedAt,
		Text:      doc.Content,
		ReadByIDs: message.ReadBySet(doc.ReadByIDs),
		Metadata:  doc.Metadata,
		Delivery:  message.DeliveryConfirmed,
	}

	ref := doc.SenderRef
	if ref == nil && doc.SenderID != "" {
		r := user.RefTo(doc.SenderID)
		ref = &r
	}
	if ref == nil || ref.IsZero() {
		rec.IsSystem = true
	} else if sender, err := senders.resolve(ctx, *ref); err != nil {
		if !errors.Is(err, cutechat_errors.ErrNotFound) {
			t.log.Warnf("resolve sender %s of message %s: %v", ref, id, err)
		}
		t.metrics.Lookup("sender", "unresolved")
		rec.IsSystem = true
	} else {
		t.metrics.Lookup("sender", "ok")
		rec.Sender = &sender
	}

	rec.Image = doc.Image
	attachment, err := t.messages.FirstAttachment(ctx, conversationID, doc.DocID)
	switch {
	case err == nil:
		t.metrics.Lookup("attachment", "ok")
		rec.Image = attachment.URL
	case errors.Is(err, cutechat_errors.ErrNotFound):
		t.metrics.Lookup("attachment", "none")
	default:
		t.metrics.Lookup("attachment", "error")
		t.log.Warnf("attachment lookup for message %s: %v", id, err)
	}
	return rec
}

type senderResult struct {
	user user.Ref
	err  error
}

// senderSet resolves each sender reference at most once per page.
type senderSet struct {
	users repository.UserRepository
	group singleflight.Group
	mu    sync.Mutex
	done  map[string]senderResult
}

func newSenderSet(users repository.UserRepository) *senderSet {
	return &senderSet{users: users, done: make(map[string]senderResult)}
}

func (s *senderSet) resolve(ctx context.Context, ref user.DocumentRef) (user.Ref, error) {
	key := ref.String()
	s.mu.Lock()
	if res, ok := s.done[key]; ok {
		s.mu.Unlock()
		return res.user, res.err
	}
	s.mu.Unlock()

	v, err, _ := s.group.Do(key, func() (any, error) {
		s.mu.Lock()
		if res, ok := s.done[key]; ok {
			s.mu.Unlock()
			return res.user, res.err
		}
		s.mu.Unlock()

		u, err := s.users.Resolve(ctx, ref)
		s.mu.Lock()
		s.done[key] = senderResult{user: u, err: err}
		s.mu.Unlock()
		return u, err
	})
	if err != nil {
		return user.Ref{}, err
	}
	return v.(user.Ref), nil
}
