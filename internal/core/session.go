package core

import "time"

// Outcome is the terminal result of one capture-and-advice cycle:
// either advice text or a human-readable failure reason.
type Outcome struct {
	OK     bool
	Advice string
	Reason string
}

// Success wraps advice text in a successful outcome.
func Success(advice string) Outcome {
	return Outcome{OK: true, Advice: advice}
}

// Failure wraps a failure reason in an unsuccessful outcome.
func Failure(reason string) Outcome {
	return Outcome{Reason: reason}
}

// Message returns the text rendered in the overlay for this outcome.
func (o Outcome) Message() string {
	if o.OK {
		return o.Advice
	}
	return o.Reason
}

// CaptureSession is the ephemeral record of one in-flight cycle. It is
// created when the overlay enters Capturing and discarded when the
// outcome is dismissed or the window closes. Never persisted.
type CaptureSession struct {
	Image     []byte
	Context   string
	Outcome   *Outcome
	StartedAt time.Time
}
