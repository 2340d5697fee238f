// Package view binds a conversation's backend documents to a rendered, newest-first
// message list: a live subscription to the newest page, history paging, read receipts
// and outgoing sends with optimistic local echo.
package view

import (
	"context"
	"errors"
	"sync"
	"time"

	"cute-chat/internal/domain/message"
	"cute-chat/internal/domain/user"
	"cute-chat/internal/metrics"
	"cute-chat/internal/repository"
	"cute-chat/pkg/logger"

	"go.uber.org/zap"
)

const (
	DefaultPageSize       = 20
	DefaultReceiptTimeout = 10 * time.Second
	DefaultFanOut         = 8
)

// Uploader stores a local file and returns a URL the rendering client can load.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// Confirmer asks the user whether a failed send should be retried.
// Returning false abandons the draft.
type Confirmer interface {
	ConfirmRetry(ctx context.Context, draft message.Draft, err error) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, draft message.Draft, err error) bool

func (f ConfirmFunc) ConfirmRetry(ctx context.Context, draft message.Draft, err error) bool {
	return f(ctx, draft, err)
}

// SendFunc persists a draft in place of the built-in write.
type SendFunc func(ctx context.Context, draft message.Draft) error

// PickFunc lets the host choose a local file to attach. An empty path means the user
// dismissed the picker.
type PickFunc func(ctx context.Context) (string, error)

type Options struct {
	ConversationID string
	Viewer         user.Ref
	PageSize       int

	Messages      repository.MessageRepository
	Users         repository.UserRepository
	Conversations repository.ConversationRepository // optional; enables summary receipts
	Uploader      Uploader

	// Render receives the full list, newest first, after every change. It is called
	// serially and must not call back into the View's mutating methods.
	Render func(messages []message.Record)
	// OnLoading is told when data fetching starts and stops.
	OnLoading func(loading bool)
	// SendHandler bypasses the built-in persistence of drafts.
	SendHandler SendFunc
	// PickAttachment backs Attach.
	PickAttachment PickFunc
	// Confirm is consulted when a send fails. Without it failed drafts are abandoned.
	Confirm Confirmer

	ReceiptTimeout time.Duration
	FanOut         int

	Logger  *logger.Logger
	Metrics *metrics.Metrics
}

// View is one mounted conversation screen. Local state is owned by the View; every change
// goes through update so the list handed to Render is always sorted and free of duplicates.
type View struct {
	opts       Options
	log        *logger.Logger
	metrics    *metrics.Metrics
	translator *Translator

	ctx  context.Context
	stop context.CancelFunc

	renderMu sync.Mutex
	mu       sync.Mutex
	state    State
	mounted  bool
	closed   bool
	cancel   repository.CancelFunc
	paging   bool
	loading  int
	receipts map[string]struct{}

	closeOnce sync.Once
	wg        sync.WaitGroup
}

func New(opts Options) (*View, error) {
	if opts.ConversationID == "" {
		return nil, errors.New("conversation id is required")
	}
	if opts.Viewer.ID == "" {
		return nil, errors.New("viewer id is required")
	}
	if opts.Messages == nil || opts.Users == nil {
		return nil, errors.New("message and user repositories are required")
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.ReceiptTimeout <= 0 {
		opts.ReceiptTimeout = DefaultReceiptTimeout
	}
	if opts.FanOut <= 0 {
		opts.FanOut = DefaultFanOut
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	l := opts.Logger.With(
		zap.String(string(logger.ConversationIdKey), opts.ConversationID),
		zap.String(string(logger.ViewerIdKey), opts.Viewer.ID),
	)
	ctx, stop := context.WithCancel(context.Background())
	return &View{
		opts:       opts,
		log:        l,
		metrics:    opts.Metrics,
		translator: NewTranslator(opts.Messages, opts.Users, opts.FanOut, l, opts.Metrics),
		ctx:        ctx,
		stop:       stop,
		receipts:   make(map[string]struct{}),
	}, nil
}

func (v *View) ConversationID() string {
	return v.opts.ConversationID
}

func (v *View) Viewer() user.Ref {
	return v.opts.Viewer
}

// Messages returns a copy of the displayed list, newest first.
func (v *View) Messages() []message.Record {
	v.mu.Lock()
	defer v.mu.Unlock()
	return cloneRecords(v.state.Messages)
}

// Cursor returns the pagination cursor, nil when history is exhausted or not yet loaded.
func (v *View) Cursor() *message.Cursor {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state.Cursor == nil {
		return nil
	}
	c := *v.state.Cursor
	return &c
}

// Loaded reports whether the first snapshot has been applied.
func (v *View) Loaded() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state.Loaded
}

// update applies fn to the state and renders the result. It reports false, without
// touching anything, once the view is unmounted.
func (v *View) update(fn func(State) State) bool {
	v.renderMu.Lock()
	defer v.renderMu.Unlock()

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return false
	}
	v.state = fn(v.state)
	list := cloneRecords(v.state.Messages)
	v.mu.Unlock()

	if v.opts.Render != nil {
		v.opts.Render(list)
	}
	return true
}

func (v *View) isClosed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

func (v *View) beginLoading() {
	v.mu.Lock()
	v.loading++
	notify := v.loading == 1
	v.mu.Unlock()
	if notify && v.opts.OnLoading != nil {
		v.opts.OnLoading(true)
	}
}

func (v *View) endLoading() {
	v.mu.Lock()
	if v.loading == 0 {
		v.mu.Unlock()
		return
	}
	v.loading--
	notify := v.loading == 0
	v.mu.Unlock()
	if notify && v.opts.OnLoading != nil {
		v.opts.OnLoading(false)
	}
}

func cloneRecords(records []message.Record) []message.Record {
	out := make([]message.Record, len(records))
	copy(out, records)
	return out
}
