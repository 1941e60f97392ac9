package console

import "unsafe"

// Attr defines a color attribute.
type Attr uint16

// The colors that can be combined into an Attr.
const (
	Black Attr = iota
	Blue
	Green
	Cyan
	Red
	Magenta
	Brown
	LightGrey
	Grey
	LightBlue
	LightGreen
	LightCyan
	LightRed
	LightMagenta
	LightBrown
	White
)

const (
	clearColor = Black
	clearChar  = byte(' ')
)

// MakeAttr combines a foreground and a background color into an Attr.
func MakeAttr(fg, bg Attr) Attr {
	return (bg << 4) | (fg & 0xF)
}

// Ega implements an EGA-compatible text console that writes directly to a
// text mode framebuffer. The framebuffer must be identity-mapped before
// Init is called.
type Ega struct {
	width  uint16
	height uint16

	fb []uint16
}

// Init sets up the console to use the width*height cell framebuffer at
// fbPhysAddr.
func (cons *Ega) Init(width, height uint16, fbPhysAddr uintptr) {
	cons.width = width
	cons.height = height
	cons.fb = unsafe.Slice((*uint16)(unsafe.Pointer(fbPhysAddr)), int(width)*int(height))
}

// Dimensions returns the console width and height in characters.
func (cons *Ega) Dimensions() (uint16, uint16) {
	return cons.width, cons.height
}

// ClearLines clears count lines starting at line y.
func (cons *Ega) ClearLines(y, count uint16) {
	if y >= cons.height {
		return
	}
	if y+count > cons.height {
		count = cons.height - y
	}

	clr := (uint16(clearColor) << 8) | uint16(clearChar)
	for offset, end := y*cons.width, (y+count)*cons.width; offset < end; offset++ {
		cons.fb[offset] = clr
	}
}

// ScrollUp moves the console contents up by the given number of lines. The
// contents of the bottom lines are left as is.
func (cons *Ega) ScrollUp(lines uint16) {
	if lines == 0 || lines > cons.height {
		return
	}

	copy(cons.fb, cons.fb[lines*cons.width:])
}

// Write a char to the specified location.
func (cons *Ega) Write(ch byte, attr Attr, x, y uint16) {
	if x >= cons.width || y >= cons.height {
		return
	}

	cons.fb[(y*cons.width)+x] = (uint16(attr) << 8) | uint16(ch)
}
