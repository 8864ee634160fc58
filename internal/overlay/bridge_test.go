package overlay

import (
	"testing"

	"visiond/internal/core"
)

func TestBridge_EmitsCommandsInTransitionOrder(t *testing.T) {
	bridge := NewBridge(16, quietLogger())
	c := NewController("u1", bridge, Geometry{96, 96}, Geometry{420, 640}, quietLogger())

	c.Expand()
	session, err := c.BeginCapture()
	if err != nil {
		t.Fatal(err)
	}
	if err := c.ShowResult(session, core.Success("Save more")); err != nil {
		t.Fatal(err)
	}
	c.Collapse()

	want := []string{
		CmdShrinkWindow, // creation
		CmdExpandWindow,
		CmdSetBusy,
		CmdRenderResult,
		CmdShrinkWindow, // collapse
		CmdSetBusy,
	}
	for i, name := range want {
		cmd := <-bridge.Commands()
		if cmd.Name != name {
			t.Fatalf("command %d = %s, want %s", i, cmd.Name, name)
		}
		if name == CmdRenderResult {
			payload, ok := cmd.Payload.(RenderPayload)
			if !ok || !payload.OK || payload.Text != "Save more" {
				t.Fatalf("render payload = %+v", cmd.Payload)
			}
		}
	}
}

func TestBridge_DropsInsteadOfBlocking(t *testing.T) {
	bridge := NewBridge(1, quietLogger())

	// Nobody drains; the second send must not block.
	done := make(chan struct{})
	go func() {
		bridge.Minimize()
		bridge.Minimize()
		close(done)
	}()
	<-done

	if got := len(bridge.commands); got != 1 {
		t.Fatalf("buffered commands = %d, want 1", got)
	}
}
