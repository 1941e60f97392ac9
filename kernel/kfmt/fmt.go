package kfmt

import (
	"io"
	"memcore/kernel/sync"
	"unsafe"
)

// numBufSize is the maximum length of a formatted number, padding included.
const numBufSize = 32

var (
	errMissingArg   = []byte("(MISSING)")
	errWrongArgType = []byte("%!(WRONGTYPE)")
	errNoVerb       = []byte("%!(NOVERB)")
	errExtraArg     = []byte("%!(EXTRA)")

	digits = "0123456789abcdef"

	// numBuf is filled from the right while formatting a number.
	numBuf [numBufSize]byte

	// byteBuf passes single bytes to the writer.
	byteBuf [1]byte

	// earlyPrintBuffer keeps the output produced before an output sink is
	// attached.
	earlyPrintBuffer ringBuffer

	// outputSink receives the output of Printf. While nil, output goes to
	// earlyPrintBuffer.
	outputSink io.Writer

	// outputLock guards outputSink and keeps lines printed by different
	// callers from interleaving.
	outputLock sync.Spinlock
)

// SetOutputSink makes w the target of Printf and replays to it whatever was
// printed while no sink was attached.
func SetOutputSink(w io.Writer) {
	outputLock.Acquire()
	outputSink = w
	if w != nil {
		io.Copy(w, &earlyPrintBuffer)
	}
	outputLock.Release()
}

// GetOutputSink returns the target of Printf or nil if output is still being
// buffered.
func GetOutputSink() io.Writer {
	return outputSink
}

// Printf formats according to format and writes the result to the active
// output sink. See Fprintf for the supported verbs.
func Printf(format string, args ...interface{}) {
	outputLock.Acquire()
	Fprintf(outputSink, format, args...)
	outputLock.Release()
}

// Fprintf formats according to format and writes the result to w, or to the
// early print buffer if w is nil. It does not allocate memory and can be used
// before the Go allocator is available. The supported verbs are:
//
//	%s  string or []byte, left-padded with spaces
//	%d  integer in base 10, left-padded with spaces
//	%x  non-negative integer in base 16, left-padded with zeroes
//	%%  a percent sign
//
// A decimal width may precede the verb. Problems with the format or its
// arguments are reported inline with the markers used by the fmt package.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	var argIndex int

	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			writeByte(w, format[i])
			continue
		}

		width := 0
		for i++; i < len(format) && format[i] >= '0' && format[i] <= '9'; i++ {
			width = width*10 + int(format[i]-'0')
		}

		if i == len(format) {
			doWrite(w, errNoVerb)
			break
		}

		switch verb := format[i]; verb {
		case '%':
			writeByte(w, '%')
		case 's', 'd', 'x':
			if argIndex == len(args) {
				doWrite(w, errMissingArg)
				continue
			}

			if verb == 's' {
				fmtString(w, args[argIndex], width)
			} else {
				fmtInt(w, args[argIndex], verb, width)
			}
			argIndex++
		default:
			doWrite(w, errNoVerb)
		}
	}

	for ; argIndex < len(args); argIndex++ {
		doWrite(w, errExtraArg)
	}
}

func fmtString(w io.Writer, arg interface{}, width int) {
	switch s := arg.(type) {
	case string:
		writeRepeat(w, ' ', width-len(s))
		// Slicing the string into a []byte would allocate.
		for i := 0; i < len(s); i++ {
			writeByte(w, s[i])
		}
	case []byte:
		writeRepeat(w, ' ', width-len(s))
		doWrite(w, s)
	default:
		doWrite(w, errWrongArgType)
	}
}

// fmtInt writes an integer in base 10 for the 'd' verb and in base 16 for
// the 'x' verb.
func fmtInt(w io.Writer, arg interface{}, verb byte, width int) {
	value, negative, ok := intValue(arg)
	if !ok || (negative && verb == 'x') {
		doWrite(w, errWrongArgType)
		return
	}

	base, padCh := uint64(10), byte(' ')
	if verb == 'x' {
		base, padCh = 16, '0'
	}

	if width > numBufSize {
		width = numBufSize
	}

	pos := numBufSize
	for {
		pos--
		numBuf[pos] = digits[value%base]
		if value /= base; value == 0 {
			break
		}
	}

	if negative {
		pos--
		numBuf[pos] = '-'
	}

	for numBufSize-pos < width {
		pos--
		numBuf[pos] = padCh
	}

	doWrite(w, numBuf[pos:])
}

// intValue returns the magnitude and sign of an integer argument. ok is false
// if arg is not one of the built-in integer types.
func intValue(arg interface{}) (value uint64, negative, ok bool) {
	var signed int64

	switch v := arg.(type) {
	case uint8:
		return uint64(v), false, true
	case uint16:
		return uint64(v), false, true
	case uint32:
		return uint64(v), false, true
	case uint64:
		return v, false, true
	case uint:
		return uint64(v), false, true
	case uintptr:
		return uint64(v), false, true
	case int8:
		signed = int64(v)
	case int16:
		signed = int64(v)
	case int32:
		signed = int64(v)
	case int64:
		signed = v
	case int:
		signed = int64(v)
	default:
		return 0, false, false
	}

	if signed < 0 {
		return uint64(-signed), true, true
	}
	return uint64(signed), false, true
}

func writeByte(w io.Writer, ch byte) {
	byteBuf[0] = ch
	doWrite(w, byteBuf[:])
}

func writeRepeat(w io.Writer, ch byte, count int) {
	for ; count > 0; count-- {
		writeByte(w, ch)
	}
}

// doWrite hides p from escape analysis. The writer is only known at run
// time, so without the noEscape call the compiler moves every formatted
// buffer to the heap.
func doWrite(w io.Writer, p []byte) {
	doRealWrite(w, noEscape(unsafe.Pointer(&p)))
}

func doRealWrite(w io.Writer, bufPtr unsafe.Pointer) {
	p := *(*[]byte)(bufPtr)
	if w != nil {
		w.Write(p)
	} else {
		earlyPrintBuffer.Write(p)
	}
}

// noEscape hides a pointer from escape analysis. This function is copied over
// from runtime/stubs.go
//
//go:nosplit
func noEscape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
