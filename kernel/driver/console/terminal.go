package console

// Terminal is an io.Writer that renders text on an Ega console. It handles
// CR and LF characters, wraps long lines and scrolls the console when the
// cursor moves past the last line.
//
// Terminal performs no locking. When used as the kfmt output sink, writes
// are serialized by kfmt.
type Terminal struct {
	// Interfaces cannot be used before the Go allocator is available so
	// the console is referenced by its concrete type.
	cons *Ega

	width, height uint16
	curX, curY    uint16
	curAttr       Attr
}

// AttachTo connects the terminal to cons and moves the cursor to the top
// left corner. Text is rendered as light grey on black.
func (t *Terminal) AttachTo(cons *Ega) {
	t.cons = cons
	t.width, t.height = cons.Dimensions()
	t.curX, t.curY = 0, 0
	t.curAttr = MakeAttr(LightGrey, Black)
}

// Clear clears the terminal and moves the cursor to the top left corner.
func (t *Terminal) Clear() {
	t.cons.ClearLines(0, t.height)
	t.curX, t.curY = 0, 0
}

// Position returns the current cursor position (x, y).
func (t *Terminal) Position() (uint16, uint16) {
	return t.curX, t.curY
}

// Write implements io.Writer.
func (t *Terminal) Write(data []byte) (int, error) {
	for _, b := range data {
		switch b {
		case '\r':
			t.curX = 0
		case '\n':
			t.curX = 0
			t.lineFeed()
		default:
			t.cons.Write(b, t.curAttr, t.curX, t.curY)
			if t.curX++; t.curX == t.width {
				t.curX = 0
				t.lineFeed()
			}
		}
	}

	return len(data), nil
}

// lineFeed advances the cursor to the next line, scrolling the console
// contents if the cursor is on the last line.
func (t *Terminal) lineFeed() {
	if t.curY+1 < t.height {
		t.curY++
		return
	}

	t.cons.ScrollUp(1)
	t.cons.ClearLines(t.height-1, 1)
}
