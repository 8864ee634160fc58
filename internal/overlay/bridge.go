package overlay

import (
	"visiond/internal/core"
	"visiond/internal/log"
)

// Command is one message on the window-internal channel between the
// controller and the platform shell that renders the window.
type Command struct {
	Name    string
	Payload any
}

// Command names understood by the shell.
const (
	CmdExpandWindow   = "expand-window"
	CmdShrinkWindow   = "shrink-window"
	CmdMinimizeWindow = "minimize-window"
	CmdFocusWindow    = "focus-window"
	CmdSetBusy        = "set-busy"
	CmdRenderResult   = "render-result"
	CmdResetUI        = "reset-ui"
	CmdCloseWindow    = "close-window"
)

// RenderPayload carries a cycle outcome to the shell.
type RenderPayload struct {
	OK   bool   `json:"ok"`
	Text string `json:"text"`
}

// Bridge is a Surface that forwards controller transitions to the shell
// as typed commands on a buffered channel, in transition order.
//
// Sends never block: the controller holds its lock while emitting, so a
// stalled shell must not stall the control loop. If the buffer is full
// the command is dropped and logged; the shell recovers by reloading.
type Bridge struct {
	commands chan Command
	logger   *log.Logger
}

// NewBridge creates a bridge with the given channel buffer.
func NewBridge(buffer int, logger *log.Logger) *Bridge {
	if buffer < 1 {
		buffer = 16
	}
	return &Bridge{
		commands: make(chan Command, buffer),
		logger:   logger.WithComponent(log.ComponentOverlay),
	}
}

// Commands is the stream the shell drains.
func (b *Bridge) Commands() <-chan Command {
	return b.commands
}

func (b *Bridge) send(cmd Command) {
	select {
	case b.commands <- cmd:
	default:
		b.logger.Warn("shell not draining, command dropped", "command", cmd.Name)
	}
}

func (b *Bridge) Expand(g Geometry)  { b.send(Command{Name: CmdExpandWindow, Payload: g}) }
func (b *Bridge) Shrink(g Geometry)  { b.send(Command{Name: CmdShrinkWindow, Payload: g}) }
func (b *Bridge) Minimize()          { b.send(Command{Name: CmdMinimizeWindow}) }
func (b *Bridge) Focus()             { b.send(Command{Name: CmdFocusWindow}) }
func (b *Bridge) Busy(busy bool)     { b.send(Command{Name: CmdSetBusy, Payload: busy}) }
func (b *Bridge) Reload()            { b.send(Command{Name: CmdResetUI}) }
func (b *Bridge) Close()             { b.send(Command{Name: CmdCloseWindow}) }

func (b *Bridge) Render(o core.Outcome) {
	b.send(Command{Name: CmdRenderResult, Payload: RenderPayload{OK: o.OK, Text: o.Message()}})
}
