// Package agent runs the decision loop: ask the model for one action, dispatch
// it against the capability surface, record the outcome, repeat.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/openapi-seeker/internal/capability"
	"github.com/xkilldash9x/openapi-seeker/internal/llmclient"
	"github.com/xkilldash9x/openapi-seeker/internal/transcript"
)

// Capabilities is the part of the capability surface the loop dispatches to.
type Capabilities interface {
	Listings(kind capability.Kind) []capability.Listing
	Invoke(ctx context.Context, kind capability.Kind, name string, raw map[string]any) (*capability.Result, error)
	Snapshot() capability.Snapshot
}

// LoopConfig holds the loop's pacing. MaxTurns of zero runs until stopped.
type LoopConfig struct {
	Instruction string
	PacingDelay time.Duration
	TurnTimeout time.Duration
	MaxTurns    int
}

// TurnReport summarizes one turn for logging and tests.
type TurnReport struct {
	ID     string
	Action *Action
	Code   ErrorCode
	Err    error
}

// Loop is the decision loop. Turns never overlap.
type Loop struct {
	logger     *zap.Logger
	model      llmclient.Client
	caps       Capabilities
	transcript *transcript.Transcript
	cfg        LoopConfig

	turnMu sync.Mutex
	sleep  func(ctx context.Context, d time.Duration) bool
}

// Allows for mocking in tests.
var uuidNewString = uuid.NewString

// NewLoop wires a loop. The transcript is owned by the loop from here on.
func NewLoop(logger *zap.Logger, model llmclient.Client, caps Capabilities, tr *transcript.Transcript, cfg LoopConfig) (*Loop, error) {
	if model == nil || caps == nil || tr == nil {
		return nil, fmt.Errorf("model, capabilities and transcript are all required")
	}
	if cfg.PacingDelay < 0 || cfg.TurnTimeout < 0 {
		return nil, fmt.Errorf("pacing delay and turn timeout must not be negative")
	}
	return &Loop{
		logger:     logger.Named("decision_loop"),
		model:      model,
		caps:       caps,
		transcript: tr,
		cfg:        cfg,
		sleep:      waitContext,
	}, nil
}

// Transcript exposes the loop's history.
func (l *Loop) Transcript() *transcript.Transcript { return l.transcript }

// Run executes turns until ctx is cancelled or MaxTurns is reached. A turn
// already in flight when ctx is cancelled runs to completion. Turn failures
// never end the loop.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("Decision loop started.",
		zap.Duration("pacing_delay", l.cfg.PacingDelay),
		zap.Duration("turn_timeout", l.cfg.TurnTimeout),
		zap.Int("max_turns", l.cfg.MaxTurns),
	)

	for n := 1; ; n++ {
		if ctx.Err() != nil {
			l.logger.Info("Stop signal received, decision loop exiting.", zap.Int("turns", n-1))
			return nil
		}

		l.Turn(context.WithoutCancel(ctx))

		if l.cfg.MaxTurns > 0 && n >= l.cfg.MaxTurns {
			l.logger.Info("Turn budget exhausted, decision loop exiting.", zap.Int("turns", n))
			return nil
		}
		if !l.sleep(ctx, l.cfg.PacingDelay) {
			l.logger.Info("Stop signal received, decision loop exiting.", zap.Int("turns", n))
			return nil
		}
	}
}

// Turn runs one full iteration: snapshot, model call, parse, dispatch. It
// always appends at least one transcript entry and never panics.
func (l *Loop) Turn(ctx context.Context) (report TurnReport) {
	l.turnMu.Lock()
	defer l.turnMu.Unlock()

	report.ID = uuidNewString()
	logger := l.logger.With(zap.String("turn_id", report.ID))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic recovered during turn",
				zap.Any("panic_value", r),
				zap.Stack("stack"),
			)
			report.Err = fmt.Errorf("%w: %v", errTurnPanic, r)
			report.Code = l.recordFailure(report.Action, report.Err)
		}
		fields := []zap.Field{zap.Duration("duration", time.Since(start))}
		if report.Action != nil {
			fields = append(fields, zap.String("kind", string(report.Action.Kind)), zap.String("name", report.Action.Name))
		}
		if report.Err != nil {
			logger.Warn("Turn failed", append(fields, zap.String("code", string(report.Code)), zap.Error(report.Err))...)
		} else {
			logger.Info("Turn complete", fields...)
		}
	}()

	snap := l.caps.Snapshot()
	msgs := buildMessages(l.cfg.Instruction, snap, l.transcript.Snapshot())

	response, err := l.decide(ctx, msgs)
	if err != nil {
		report.Err = err
		report.Code = l.recordFailure(nil, err)
		return report
	}

	action, err := ParseAction(response)
	if err != nil {
		logger.Debug("Rejected model response", zap.String("raw_response", response))
		report.Err = err
		report.Code = l.recordFailure(nil, err)
		return report
	}
	report.Action = &action

	l.transcript.Append(transcript.Entry{Role: transcript.RoleAssistant, Content: response})

	if err := l.dispatch(ctx, action); err != nil {
		report.Err = err
		report.Code = Classify(err)
	}
	return report
}

// decide sends msgs to the model under the turn timeout. Every failure is
// reported as ErrModelUnavailable.
func (l *Loop) decide(ctx context.Context, msgs []llmclient.Message) (string, error) {
	if l.cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.TurnTimeout)
		defer cancel()
	}
	response, err := l.model.Chat(ctx, llmclient.Request{
		Messages: msgs,
		Schema:   ActionSchema(),
		Tier:     llmclient.TierPowerful,
	})
	if err != nil {
		if !errors.Is(err, llmclient.ErrModelUnavailable) {
			err = fmt.Errorf("%w: %w", llmclient.ErrModelUnavailable, err)
		}
		return "", err
	}
	return response, nil
}

// dispatch performs action and appends exactly one transcript entry: the
// result, or a diagnostic when it fails. The returned error is informational.
func (l *Loop) dispatch(ctx context.Context, action Action) error {
	kind, known := action.Kind.CapabilityKind()
	if !known {
		err := fmt.Errorf("%w: %q", ErrUnknownAction, action.Kind)
		l.recordFailure(&action, err)
		return err
	}

	var (
		result any
		role   = transcript.RoleCapabilityResult
	)
	if action.Kind.Targeted() {
		res, err := l.caps.Invoke(ctx, kind, action.Name, action.Arguments)
		if err != nil {
			l.recordFailure(&action, err)
			return err
		}
		result = res.Data
		if res.Delegate {
			role = transcript.RoleDelegate
		}
	} else {
		result = l.caps.Listings(kind)
	}

	l.transcript.Append(transcript.Entry{
		Role: role,
		Content: outcome{
			Action:  action.Kind,
			Name:    action.Name,
			Result:  result,
			Context: l.caps.Snapshot(),
		}.String(),
	})
	return nil
}

// recordFailure appends a diagnostic entry for err and returns its code.
func (l *Loop) recordFailure(action *Action, err error) ErrorCode {
	code := Classify(err)
	o := outcome{
		Error:   &diagnostic{Code: code, Message: err.Error()},
		Context: l.caps.Snapshot(),
	}
	if action != nil {
		o.Action = action.Kind
		o.Name = action.Name
	}
	l.transcript.Append(transcript.Entry{Role: transcript.RoleUser, Content: o.String()})
	return code
}

// waitContext sleeps for d and reports false if ctx ended first.
func waitContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
