package view

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cute-chat/internal/domain/conversation"
	"cute-chat/internal/domain/message"
	"cute-chat/internal/domain/user"
	"cute-chat/internal/repository"
	cutechat_errors "cute-chat/pkg/errors"

	"github.com/stretchr/testify/mock"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeStore is an in-memory backend implementing the message and conversation
// repositories. Snapshots are delivered only when a test calls push.
type fakeStore struct {
	mu          sync.Mutex
	docs        []message.Document
	attachments map[string]message.Attachment
	summary     *conversation.Summary
	nextID      int

	limit     int
	onNext    repository.SnapshotFunc
	onError   repository.ErrorFunc
	cancelled int

	listCalls  int
	listErr    error
	beforeList func()

	sendErrs        []error
	sendCalls       int
	sentAttachments []*message.Attachment
	duringSend      func()

	markReadCalls [][]string
	markReadErr   error
	summaryReads  int
	summaryMarks  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{attachments: map[string]message.Attachment{}, nextID: 1000}
}

// seed adds n messages m1..mn, one minute apart, m1 the oldest, all sent by u1.
func (f *fakeStore) seed(n int) {
	for i := 1; i <= n; i++ {
		f.add(testDoc(i, "u1"))
	}
}

func (f *fakeStore) add(doc message.Document) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, doc)
}

func (f *fakeStore) remove(messageID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, d := range f.docs {
		if d.MessageID == messageID {
			f.docs = append(f.docs[:i], f.docs[i+1:]...)
			return
		}
	}
}

func testDoc(i int, sender string) message.Document {
	ref := user.RefTo(sender)
	return message.Document{
		DocID:          fmt.Sprintf("d-%03d", i),
		MessageID:      fmt.Sprintf("m%d", i),
		ConversationID: "c1",
		CreatedAt:      baseTime.Add(time.Duration(i) * time.Minute),
		Content:        fmt.Sprintf("message %d", i),
		SenderID:       sender,
		SenderRef:      &ref,
		ReadByIDs:      []string{sender},
	}
}

func (f *fakeStore) sorted() []message.Document {
	docs := make([]message.Document, len(f.docs))
	copy(docs, f.docs)
	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.After(docs[j].CreatedAt)
		}
		return docs[i].DocID > docs[j].DocID
	})
	return docs
}

// push delivers the current newest page to the subscriber, synchronously.
func (f *fakeStore) push() {
	f.pushSkipping(0)
}

// pushSkipping delivers the newest page with n of its documents undecodable: they count
// toward the limit but are left out of the snapshot.
func (f *fakeStore) pushSkipping(n int) {
	f.mu.Lock()
	docs := f.sorted()
	if len(docs) > f.limit {
		docs = docs[:f.limit]
	}
	full := len(docs) >= f.limit
	if n > len(docs) {
		n = len(docs)
	}
	docs = docs[n:]
	onNext := f.onNext
	f.mu.Unlock()
	if onNext != nil {
		onNext(docs, full)
	}
}

func (f *fakeStore) fail(err error) {
	f.mu.Lock()
	onError := f.onError
	f.mu.Unlock()
	if onError != nil {
		onError(err)
	}
}

func (f *fakeStore) Subscribe(ctx context.Context, conversationID string, limit int, onNext repository.SnapshotFunc, onError repository.ErrorFunc) (repository.CancelFunc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limit = limit
	f.onNext = onNext
	f.onError = onError
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.cancelled++
		f.onNext = nil
		f.onError = nil
	}, nil
}

func (f *fakeStore) ListBefore(ctx context.Context, conversationID string, cursor message.Cursor, limit int) ([]message.Document, error) {
	f.mu.Lock()
	f.listCalls++
	if f.listErr != nil {
		err := f.listErr
		f.mu.Unlock()
		return nil, err
	}
	var page []message.Document
	for _, d := range f.sorted() {
		older := d.CreatedAt.Before(cursor.CreatedAt) || (d.CreatedAt.Equal(cursor.CreatedAt) && d.DocID < cursor.DocID)
		if older && len(page) < limit {
			page = append(page, d)
		}
	}
	hook := f.beforeList
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return page, nil
}

func (f *fakeStore) FirstAttachment(ctx context.Context, conversationID, docID string) (message.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attachments[docID]
	if !ok {
		return message.Attachment{}, cutechat_errors.ErrNotFound
	}
	return a, nil
}

func (f *fakeStore) MarkRead(ctx context.Context, conversationID string, docIDs []string, viewerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markReadCalls = append(f.markReadCalls, append([]string(nil), docIDs...))
	if f.markReadErr != nil {
		return f.markReadErr
	}
	wanted := map[string]bool{}
	for _, id := range docIDs {
		wanted[id] = true
	}
	for i, d := range f.docs {
		if wanted[d.DocID] && !contains(d.ReadByIDs, viewerID) {
			f.docs[i].ReadByIDs = append(append([]string(nil), d.ReadByIDs...), viewerID)
		}
	}
	return nil
}

func (f *fakeStore) Send(ctx context.Context, conversationID string, doc message.Document, attachment *message.Attachment) (string, error) {
	f.mu.Lock()
	f.sendCalls++
	var err error
	if len(f.sendErrs) > 0 {
		err = f.sendErrs[0]
		f.sendErrs = f.sendErrs[1:]
	}
	hook := f.duringSend
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	doc.DocID = fmt.Sprintf("d-%04d", f.nextID)
	f.docs = append(f.docs, doc)
	if attachment != nil {
		a := *attachment
		a.MessageDocID = doc.DocID
		f.attachments[doc.DocID] = a
		f.sentAttachments = append(f.sentAttachments, &a)
	}
	f.summary = &conversation.Summary{
		ID: conversationID,
		LastMessage: &conversation.LastMessage{
			DocID:     doc.DocID,
			MessageID: doc.MessageID,
			Content:   doc.Content,
			Image:     doc.Image,
			SenderID:  doc.SenderID,
			CreatedAt: doc.CreatedAt,
			ReadByIDs: append([]string(nil), doc.ReadByIDs...),
		},
		UpdatedAt: time.Now(),
	}
	return doc.DocID, nil
}

func (f *fakeStore) sentDocs() []message.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	var docs []message.Document
	for _, d := range f.docs {
		if len(d.DocID) == len("d-0000") {
			docs = append(docs, d)
		}
	}
	return docs
}

func (f *fakeStore) GetSummary(ctx context.Context, conversationID string) (conversation.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaryReads++
	if f.summary == nil {
		return conversation.Summary{}, cutechat_errors.ErrNotFound
	}
	return *f.summary, nil
}

func (f *fakeStore) MarkLastMessageRead(ctx context.Context, conversationID, viewerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaryMarks++
	if f.summary == nil || f.summary.LastMessage == nil {
		return cutechat_errors.ErrNotFound
	}
	if !contains(f.summary.LastMessage.ReadByIDs, viewerID) {
		f.summary.LastMessage.ReadByIDs = append(f.summary.LastMessage.ReadByIDs, viewerID)
	}
	return nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// fakeUsers resolves users from a map and counts lookups.
type fakeUsers struct {
	mu    sync.Mutex
	users map[string]user.Ref
	calls int
	err   error
}

func newFakeUsers(users ...user.Ref) *fakeUsers {
	f := &fakeUsers{users: map[string]user.Ref{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) Resolve(ctx context.Context, ref user.DocumentRef) (user.Ref, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return user.Ref{}, f.err
	}
	u, ok := f.users[ref.ID]
	if !ok {
		return user.Ref{}, cutechat_errors.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// renderLog records every list handed to Render.
type renderLog struct {
	mu    sync.Mutex
	lists [][]message.Record
}

func (r *renderLog) render(list []message.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists = append(r.lists, list)
}

func (r *renderLog) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lists)
}

func (r *renderLog) all() [][]message.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]message.Record(nil), r.lists...)
}

type mockConfirmer struct {
	mock.Mock
}

func (m *mockConfirmer) ConfirmRetry(ctx context.Context, draft message.Draft, err error) bool {
	args := m.Called(ctx, draft, err)
	return args.Bool(0)
}

type mockUploader struct {
	mock.Mock
}

func (m *mockUploader) Upload(ctx context.Context, localPath string) (string, error) {
	args := m.Called(ctx, localPath)
	return args.String(0), args.Error(1)
}
