package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"cute-chat/internal/domain/message"
	"cute-chat/internal/domain/user"
	"cute-chat/internal/redis"
	"cute-chat/internal/transport/httpdto"
	"cute-chat/internal/view"
	cutechat_errors "cute-chat/pkg/errors"
	"cute-chat/pkg/logger"

	"github.com/gorilla/websocket"
)

// SendLimiter caps how fast a viewer may send. Implemented by redis.RateLimiter.
type SendLimiter interface {
	AllowSend(ctx context.Context, viewerID string) (*redis.RateLimitResult, error)
}

// Session drives one View from one websocket connection. Rendered lists, loading changes
// and failed sends go out as frames; client frames become View calls.
type Session struct {
	client  *Client
	viewer  user.Ref
	view    *view.View
	render  httpdto.BubbleRenderer
	limiter SendLimiter
	log     *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	decisions map[string]chan bool
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewSession builds the session and its View from base, which carries the repositories
// and tuning shared by every connection.
func NewSession(client *Client, viewer user.Ref, base view.Options, render httpdto.BubbleRenderer, limiter SendLimiter, l *logger.Logger) (*Session, error) {
	if l == nil {
		l = logger.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		client:    client,
		viewer:    viewer,
		render:    render,
		limiter:   limiter,
		log:       l,
		ctx:       ctx,
		cancel:    cancel,
		decisions: make(map[string]chan bool),
	}

	opts := base
	opts.ConversationID = client.ConversationID
	opts.Viewer = viewer
	opts.Render = s.onRender
	opts.OnLoading = s.onLoading
	opts.Confirm = view.ConfirmFunc(s.confirmRetry)
	opts.Logger = l

	v, err := view.New(opts)
	if err != nil {
		cancel()
		return nil, err
	}
	s.view = v
	return s, nil
}

// Start mounts the view.
func (s *Session) Start() error {
	return s.view.Mount(s.ctx)
}

// ReadLoop handles client frames until the connection fails or closes.
func (s *Session) ReadLoop() {
	conn := s.client.Conn
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warnf("websocket unexpected close: %v", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		s.handleFrame(payload)
	}
}

// Close unmounts the view and waits for in-flight work. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.view.Unmount()
		s.wg.Wait()
		s.view.Wait()
		s.client.Close()
	})
}

func (s *Session) handleFrame(payload []byte) {
	var frame httpdto.ClientFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		s.client.SendFrame(httpdto.ErrorFrame("malformed frame", "INVALID_REQUEST"))
		return
	}

	switch frame.Type {
	case httpdto.FrameSend:
		s.send(frame)
	case httpdto.FrameLoadEarlier:
		s.goAsync(func() {
			if err := s.view.LoadEarlier(s.ctx); err != nil && !errors.Is(err, cutechat_errors.ErrViewClosed) {
				s.client.SendFrame(httpdto.ErrorFrame(err.Error(), "LOAD_FAILED"))
			}
		})
	case httpdto.FrameRetry:
		s.decide(frame.ID, true)
	case httpdto.FrameCancel:
		s.decide(frame.ID, false)
	default:
		s.log.Warnf("unknown frame type %q", frame.Type)
		s.client.SendFrame(httpdto.ErrorFrame("unknown frame type", "INVALID_REQUEST"))
	}
}

func (s *Session) send(frame httpdto.ClientFrame) {
	if s.limiter != nil {
		result, err := s.limiter.AllowSend(s.ctx, s.viewer.ID)
		if err != nil {
			s.log.Warnf("send rate limit check: %v", err)
		} else if !result.Allowed {
			s.client.SendFrame(httpdto.ErrorFrame("message rate limit exceeded", "RATE_LIMITED"))
			return
		}
	}

	draft := frame.Draft(s.viewer, time.Now())
	s.goAsync(func() {
		err := s.view.Send(s.ctx, draft)
		switch {
		case err == nil, errors.Is(err, cutechat_errors.ErrSendCancelled), errors.Is(err, cutechat_errors.ErrViewClosed):
		case errors.Is(err, cutechat_errors.ErrInvalidDraft):
			// the view already logged it; validation errors never reach the client
		default:
			s.client.SendFrame(httpdto.ErrorFrame(err.Error(), "SEND_FAILED"))
		}
	})
}

func (s *Session) goAsync(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

func (s *Session) onRender(records []message.Record) {
	s.client.SendFrame(httpdto.MessagesFrame(httpdto.RenderList(records, s.render), s.view.Cursor() != nil))
}

func (s *Session) onLoading(loading bool) {
	s.client.SendFrame(httpdto.LoadingFrame(loading))
}

// confirmRetry offers retry and cancel to the client and waits for its answer.
func (s *Session) confirmRetry(ctx context.Context, draft message.Draft, err error) bool {
	ch := make(chan bool, 1)
	s.mu.Lock()
	s.decisions[draft.ID] = ch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.decisions, draft.ID)
		s.mu.Unlock()
	}()

	if !s.client.SendFrame(httpdto.SendFailedFrame(draft.ID, err)) {
		return false
	}
	select {
	case retry := <-ch:
		return retry
	case <-ctx.Done():
		return false
	case <-s.ctx.Done():
		return false
	}
}

func (s *Session) decide(draftID string, retry bool) {
	s.mu.Lock()
	ch, ok := s.decisions[draftID]
	s.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- retry:
	default:
	}
}
