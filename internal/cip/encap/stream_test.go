package encap

import "testing"

func TestSplitStreamSingleFrame(t *testing.T) {
	msg := Message{Header: Header{Command: CommandRegisterSession}, Body: []byte{1, 0, 0, 0}}
	buf := Encode(msg)

	frames, remaining := SplitStream(buf)
	if len(frames) != 1 {
		t.Fatalf("frames = %d, want 1", len(frames))
	}
	if frames[0].Header.Command != CommandRegisterSession {
		t.Errorf("command = %v, want CommandRegisterSession", frames[0].Header.Command)
	}
	if len(remaining) != 0 {
		t.Errorf("remaining = %d bytes, want 0", len(remaining))
	}
}

func TestSplitStreamMultipleFrames(t *testing.T) {
	a := Encode(Message{Header: Header{Command: CommandRegisterSession}, Body: []byte{1, 0, 0, 0}})
	b := Encode(Message{Header: Header{Command: CommandSendRRData}, Body: []byte{0xAA, 0xBB}})
	buf := append(append([]byte{}, a...), b...)

	frames, remaining := SplitStream(buf)
	if len(frames) != 2 {
		t.Fatalf("frames = %d, want 2", len(frames))
	}
	if frames[0].Header.Command != CommandRegisterSession || frames[1].Header.Command != CommandSendRRData {
		t.Errorf("commands = %v, %v", frames[0].Header.Command, frames[1].Header.Command)
	}
	if len(remaining) != 0 {
		t.Errorf("remaining = %d bytes, want 0", len(remaining))
	}
}

func TestSplitStreamPartialFrameHeldBack(t *testing.T) {
	full := Encode(Message{Header: Header{Command: CommandSendUnitData}, Body: []byte{1, 2, 3, 4}})
	partial := full[:HeaderLen+2] // header plus half the body

	frames, remaining := SplitStream(partial)
	if len(frames) != 0 {
		t.Fatalf("frames = %d, want 0 for a partial frame", len(frames))
	}
	if len(remaining) != len(partial) {
		t.Errorf("remaining = %d bytes, want %d (whole partial frame held back)", len(remaining), len(partial))
	}
}

func TestSplitStreamCompletesAcrossReads(t *testing.T) {
	full := Encode(Message{Header: Header{Command: CommandSendUnitData}, Body: []byte{1, 2, 3, 4}})
	first := full[:HeaderLen+2]
	second := full[HeaderLen+2:]

	frames, remaining := SplitStream(first)
	if len(frames) != 0 {
		t.Fatalf("frames = %d, want 0 before the rest arrives", len(frames))
	}

	buf := append(remaining, second...)
	frames, remaining = SplitStream(buf)
	if len(frames) != 1 {
		t.Fatalf("frames = %d, want 1 once the frame completes", len(frames))
	}
	if len(remaining) != 0 {
		t.Errorf("remaining = %d bytes, want 0", len(remaining))
	}
}

func TestSplitStreamSkipsGarbageByte(t *testing.T) {
	valid := Encode(Message{Header: Header{Command: CommandNOP}})
	buf := append([]byte{0xFF}, valid...)

	frames, remaining := SplitStream(buf)
	if len(frames) != 1 {
		t.Fatalf("frames = %d, want 1 after skipping the garbage byte", len(frames))
	}
	if len(remaining) != 0 {
		t.Errorf("remaining = %d bytes, want 0", len(remaining))
	}
}
