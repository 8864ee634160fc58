package services

import (
	"context"
	"strings"

	"visiond/internal/amqp"
	"visiond/internal/capture"
	"visiond/internal/core"
	"visiond/internal/log"
	"visiond/internal/overlay"
	"visiond/internal/storage"
)

// User-visible cycle messages.
const (
	MsgInvalidCapture = "capture produced invalid/empty image data"
	MsgNoAdvice       = "No advice available for this screen yet."
)

// RunCycle drives one capture-to-advice cycle against the running
// overlay. The Expanded precondition is enforced here, not just by UI
// disablement: a call in any other state fails with
// core.ErrInvalidTransition and produces no session.
//
// Every failure past BeginCapture is converted into the Displaying
// outcome; ShowResult runs exactly once per cycle.
func (m *Manager) RunCycle(ctx context.Context) (core.Outcome, error) {
	c := m.controller()
	if c == nil {
		return core.Outcome{}, ErrNotRunning
	}

	session, err := c.BeginCapture()
	if err != nil {
		return core.Outcome{}, err
	}

	outcome := m.executeCycle(ctx, c, session)

	if err := c.ShowResult(session, outcome); err != nil {
		// The window was reset or closed underneath the cycle; the
		// outcome has nowhere to render and is abandoned. A later
		// cycle's session is never touched by this one.
		m.logger.WarnContext(ctx, "cycle outcome abandoned", log.FieldError, err)
		return outcome, err
	}

	m.record(ctx, c.User(), session, outcome)
	return outcome, nil
}

func (m *Manager) executeCycle(ctx context.Context, c *overlay.Controller, session *core.CaptureSession) core.Outcome {
	buf, err := m.deps.Capturer.Capture(ctx)
	if err != nil {
		m.logger.WarnContext(ctx, "screen capture failed", log.FieldError, err)
		return core.Failure(MsgInvalidCapture)
	}
	if !capture.Valid(buf, m.deps.MinBytes) {
		m.logger.WarnContext(ctx, "capture below plausible size", log.FieldBytes, len(buf))
		return core.Failure(MsgInvalidCapture)
	}
	session.Image = buf
	session.Context = m.deps.Contexts.Context(ctx, c.User())

	text, err := m.deps.Advisor.Fetch(ctx, buf, session.Context, c.User())
	if err != nil {
		m.logger.WarnContext(ctx, "advice call failed", log.FieldError, err, log.FieldUser, c.User())
		return core.Failure(err.Error())
	}
	if strings.TrimSpace(text) == "" {
		// Content gap: the call succeeded but carried nothing usable.
		return core.Success(MsgNoAdvice)
	}
	return core.Success(text)
}

// record appends the cycle to the local history and mirrors it to the
// broker. Both are best effort and never fail the cycle.
func (m *Manager) record(ctx context.Context, user string, session *core.CaptureSession, outcome core.Outcome) {
	if m.deps.History != nil {
		rec := storage.AdviceRecord{
			User:           user,
			ContextExcerpt: truncate(session.Context, 200),
			OK:             outcome.OK,
			Message:        outcome.Message(),
		}
		if _, err := m.deps.History.AppendAdvice(ctx, rec); err != nil {
			m.logger.WarnContext(ctx, "advice history append failed", log.FieldError, err)
		}
	}
	if m.deps.Publisher != nil {
		event := amqp.NewAdviceEvent(user, outcome.OK, outcome.Message())
		if err := m.deps.Publisher.PublishAdviceEvent(ctx, event); err != nil {
			m.logger.WarnContext(ctx, "advice event publish failed", log.FieldError, err)
		}
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
