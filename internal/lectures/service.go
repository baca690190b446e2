// Package lectures exposes the lecture pipeline over the NATS bus.
package lectures

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loqalabs/aetherlearn/internal/bus"
	"github.com/loqalabs/aetherlearn/internal/lecture"
	"github.com/loqalabs/aetherlearn/internal/protocol"
	"github.com/nats-io/nats.go"
)

// QueueGroup lets several daemons share generate requests.
const QueueGroup = "aether-lectures"

type Service struct {
	bus      *bus.Client
	pipeline *lecture.Pipeline
	timeout  time.Duration
	sub      *nats.Subscription
	durable  bool
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
	closed   bool
	wg       sync.WaitGroup
	ready    atomic.Bool
	logger   *slog.Logger
}

// NewService binds pipeline to busClient. A zero timeout leaves runs unbounded.
func NewService(parent context.Context, busClient *bus.Client, pipeline *lecture.Pipeline, timeout time.Duration, logger *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		bus:      busClient,
		pipeline: pipeline,
		timeout:  timeout,
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger.With(slog.String("component", "lecture-service")),
	}
}

func (s *Service) Start() error {
	if err := s.bus.EnsureStream(protocol.StreamLectureRuns, protocol.SubjectLectureCompleted); err != nil {
		s.logger.Warn("jetstream unavailable, completion events are not retained", slogError(err))
	} else {
		s.durable = true
	}
	s.pipeline.OnCompleted(s.publishCompleted)

	sub, err := s.bus.Conn().QueueSubscribe(protocol.SubjectLectureGenerate, QueueGroup, s.handleRequest)
	if err != nil {
		return fmt.Errorf("subscribe lecture requests: %w", err)
	}
	s.sub = sub
	s.ready.Store(true)
	return nil
}

// Close stops accepting requests, cancels in-flight runs and waits for them to reply.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.ready.Store(false)
	if s.sub != nil {
		_ = s.sub.Unsubscribe()
	}
	s.cancel()
	s.wg.Wait()
}

func (s *Service) Healthy() bool {
	return s.ready.Load()
}

func (s *Service) handleRequest(msg *nats.Msg) {
	var req protocol.GenerateRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode lecture request", slogError(err))
		s.respond(msg, protocol.GenerateReply{Error: "decode request: " + err.Error(), ErrorKind: "invalid_request"})
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.respond(msg, protocol.GenerateReply{Error: "lecture service shutting down", ErrorKind: "unavailable"})
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		ctx := s.ctx
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}

		run, err := s.pipeline.Run(ctx, req.Lecture())
		if err != nil {
			s.logger.Warn("lecture request failed", slog.String("topic", req.Topic), slogError(err))
			s.respond(msg, protocol.GenerateReply{Error: err.Error(), ErrorKind: lecture.ErrorKind(err)})
			return
		}
		out := protocol.FromRun(run)
		s.respond(msg, protocol.GenerateReply{Lecture: &out})
	}()
}

func (s *Service) respond(msg *nats.Msg, reply protocol.GenerateReply) {
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(reply)
	if err != nil {
		s.logger.Warn("failed to encode lecture reply", slogError(err))
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Warn("failed to send lecture reply", slogError(err))
	}
}

func (s *Service) publishCompleted(_ context.Context, run *lecture.Run) {
	if err := s.bus.PublishJSON(protocol.SubjectLectureCompleted, protocol.CompletedFromRun(run), s.durable); err != nil {
		s.logger.Warn("failed to publish run completion", slog.String("lecture_id", run.ID), slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
