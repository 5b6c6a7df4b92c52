package encap

// isValidCommand reports whether cmd is one of the encapsulation commands a
// well-formed frame carries. SplitStream uses it to resynchronise after
// garbage bytes instead of stalling on a buffer that never yields a frame.
func isValidCommand(cmd Command) bool {
	switch cmd {
	case CommandNOP, CommandListServices, CommandListIdentity, CommandListInterfaces,
		CommandRegisterSession, CommandUnRegisterSession, CommandSendRRData, CommandSendUnitData:
		return true
	default:
		return false
	}
}

// SplitStream extracts every complete encapsulation frame from the front of
// buf, returning the decoded frames and whatever trailing bytes remain
// (a partial frame, to be completed by the next read). Unlike Decode, which
// expects exactly one frame already sized to hand, SplitStream is meant for
// a TCP read loop accumulating bytes across multiple reads: it walks the
// buffer, and on a header whose Command isn't recognised it drops a single
// byte and resynchronises rather than giving up on the whole buffer.
func SplitStream(buf []byte) (frames []Message, remaining []byte) {
	offset := 0
	for len(buf)-offset >= HeaderLen {
		cmd := Command(uint16(buf[offset]) | uint16(buf[offset+1])<<8)
		if !isValidCommand(cmd) {
			// Unrecognised command: drop one byte and resynchronise.
			offset++
			continue
		}
		msg, err := Decode(buf[offset:])
		if err != nil {
			// A recognised command with a short body just means "wait
			// for more bytes".
			break
		}
		frames = append(frames, msg)
		offset += HeaderLen + int(msg.Header.Length)
	}
	if offset == 0 {
		return frames, buf
	}
	remaining = make([]byte, len(buf)-offset)
	copy(remaining, buf[offset:])
	return frames, remaining
}
