package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/xiaot623/gogo/coordinator/internal/adapter/notify"
	"github.com/xiaot623/gogo/coordinator/internal/adapter/registry"
	"github.com/xiaot623/gogo/coordinator/internal/domain"
	"github.com/xiaot623/gogo/coordinator/internal/metrics"
	"github.com/xiaot623/gogo/coordinator/internal/protocol"
)

const (
	// DefaultMaxAttempts is the delivery budget of one invocation.
	DefaultMaxAttempts = 3
	// DefaultBackoffBase is the delay after the first failed attempt. It
	// doubles after each further failure.
	DefaultBackoffBase = time.Second
)

// TaskSender delivers one encoded task to an agent endpoint.
type TaskSender interface {
	SendTask(ctx context.Context, endpoint string, req domain.TaskRequest) (*domain.TaskResponse, error)
}

// Bridge executes tool calls against agents over the task protocol with
// bounded retries.
type Bridge struct {
	resolver    registry.Resolver
	sender      TaskSender
	codec       *protocol.Codec
	maxAttempts int
	backoffBase time.Duration
	sleep       func(ctx context.Context, d time.Duration) error

	emitter notify.Emitter
	log     zerolog.Logger
	clock   func() time.Time
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithMaxAttempts overrides the delivery budget.
func WithMaxAttempts(n int) BridgeOption {
	return func(b *Bridge) {
		if n > 0 {
			b.maxAttempts = n
		}
	}
}

// WithBackoffBase overrides the first backoff delay.
func WithBackoffBase(d time.Duration) BridgeOption {
	return func(b *Bridge) {
		if d >= 0 {
			b.backoffBase = d
		}
	}
}

// WithSleep replaces the backoff wait (for tests).
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) BridgeOption {
	return func(b *Bridge) { b.sleep = sleep }
}

// WithCodec replaces the protocol codec.
func WithCodec(codec *protocol.Codec) BridgeOption {
	return func(b *Bridge) { b.codec = codec }
}

// WithBridgeEmitter sets the notification side channel.
func WithBridgeEmitter(emitter notify.Emitter) BridgeOption {
	return func(b *Bridge) { b.emitter = emitter }
}

// WithBridgeLogger sets the logger.
func WithBridgeLogger(log zerolog.Logger) BridgeOption {
	return func(b *Bridge) { b.log = log }
}

// WithBridgeClock overrides the time source.
func WithBridgeClock(clock func() time.Time) BridgeOption {
	return func(b *Bridge) { b.clock = clock }
}

// NewBridge creates a bridge over an endpoint resolver and a task sender.
func NewBridge(resolver registry.Resolver, sender TaskSender, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		resolver:    resolver,
		sender:      sender,
		codec:       protocol.NewCodec(nil),
		maxAttempts: DefaultMaxAttempts,
		backoffBase: DefaultBackoffBase,
		sleep:       sleepContext,
		emitter:     notify.Discard,
		log:         zerolog.Nop(),
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Invoke executes toolName on agentName. An unknown agent fails at once with
// a *domain.AgentUnavailableError. Otherwise every failed attempt is followed
// by a backoff of base*2^(attempt-1) until the budget is spent, and the last
// failure is returned wrapped in a *domain.AgentCallError.
func (b *Bridge) Invoke(ctx context.Context, agentName, toolName string, params map[string]interface{}) (*domain.Invocation, error) {
	endpoint, ok := b.resolver.Resolve(agentName)
	if !ok {
		b.log.Warn().Str("agent", agentName).Str("tool", toolName).Msg("agent endpoint not registered")
		return nil, &domain.AgentUnavailableError{Agent: agentName}
	}

	taskID := uuid.New().String()
	req := b.codec.Encode(taskID, toolName, params)
	inv := &domain.Invocation{
		TaskID:      taskID,
		Agent:       agentName,
		Tool:        toolName,
		Endpoint:    endpoint,
		Instruction: req.Message.Parts[0].Text,
	}

	start := b.clock()
	var lastErr error
	for attempt := 1; attempt <= b.maxAttempts; attempt++ {
		inv.Attempts = attempt
		state, result, err := b.attempt(ctx, endpoint, req)
		metrics.RecordAgentAttempt(agentName, err == nil)
		if err == nil {
			inv.State = state
			inv.Result = result
			inv.Duration = b.clock().Sub(start)
			metrics.RecordAgentCall(agentName, true, inv.Duration)
			b.log.Info().
				Str("agent", agentName).
				Str("tool", toolName).
				Str("task_id", taskID).
				Int("attempt", attempt).
				Str("state", state).
				Msg("agent task succeeded")
			b.emit(domain.EventTypeAgentTaskSucceeded, inv)
			return inv, nil
		}

		lastErr = err
		b.log.Warn().
			Err(err).
			Str("agent", agentName).
			Str("tool", toolName).
			Str("task_id", taskID).
			Int("attempt", attempt).
			Int("max_attempts", b.maxAttempts).
			Msg("agent call attempt failed")

		if attempt == b.maxAttempts {
			break
		}
		if err := b.sleep(ctx, b.backoff(attempt)); err != nil {
			lastErr = err
			break
		}
	}

	inv.State = protocol.StateError
	inv.Result = lastErr.Error()
	inv.Duration = b.clock().Sub(start)
	metrics.RecordAgentCall(agentName, false, inv.Duration)
	b.emit(domain.EventTypeAgentTaskFailed, inv)
	return nil, &domain.AgentCallError{
		Agent:    agentName,
		Tool:     toolName,
		TaskID:   taskID,
		Attempts: inv.Attempts,
		Err:      lastErr,
	}
}

func (b *Bridge) attempt(ctx context.Context, endpoint string, req domain.TaskRequest) (string, string, error) {
	resp, err := b.sender.SendTask(ctx, endpoint, req)
	if err != nil {
		return "", "", err
	}
	return b.codec.Decode(resp)
}

func (b *Bridge) backoff(attempt int) time.Duration {
	return b.backoffBase * time.Duration(1<<uint(attempt-1))
}

func (b *Bridge) emit(eventType domain.EventType, inv *domain.Invocation) {
	b.emitter.Emit(notify.NewEvent(eventType, inv.TaskID, inv.Agent, b.clock(), inv))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
