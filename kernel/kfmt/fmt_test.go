package kfmt

import (
	"bytes"
	"io"
	"math"
	"strings"
	"testing"
)

func TestFprintf(t *testing.T) {
	// mute vet warnings about malformed printf formatting strings
	fprintf := Fprintf

	specs := []struct {
		format    string
		args      []interface{}
		expOutput string
	}{
		{"no args\n", nil, "no args\n"},
		{
			"\t[0x%10x - 0x%10x], size: %10d, type: %s\n",
			[]interface{}{uint64(0x9fc00), uint64(0xa0000), uint64(1024), "reserved"},
			"\t[0x000009fc00 - 0x00000a0000], size:       1024, type: reserved\n",
		},
		{
			"available memory: %dKb",
			[]interface{}{uint64(130559)},
			"available memory: 130559Kb",
		},
		{
			"reserved %s: frames %d - %d (%d frames)",
			[]interface{}{"kernel image", uint64(256), uint64(1279), uint64(1024)},
			"reserved kernel image: frames 256 - 1279 (1024 frames)",
		},
		{
			"[%s] unrecoverable error: %s",
			[]interface{}{"vmm", []byte("virtual page is already mapped")},
			"[vmm] unrecoverable error: virtual page is already mapped",
		},
		// padding
		{"'%6s'", []interface{}{"pmm"}, "'   pmm'"},
		{"'%2s'", []interface{}{"pmm"}, "'pmm'"},
		{"'%4s'", []interface{}{[]byte("ab")}, "'  ab'"},
		{"'%5d'", []interface{}{int(-42)}, "'  -42'"},
		{"'%2d'", []interface{}{int16(-420)}, "'-420'"},
		{"'%4x'", []interface{}{uintptr(0xb8000)}, "'b8000'"},
		{"'%40x'", []interface{}{uint8(1)}, "'" + strings.Repeat("0", numBufSize-1) + "1'"},
		// integer types and limits
		{"%d %d %d", []interface{}{uint32(0), int8(7), uint(42)}, "0 7 42"},
		{"%x", []interface{}{uint64(math.MaxUint64)}, "ffffffffffffffff"},
		{"%d", []interface{}{int64(math.MinInt64)}, "-9223372036854775808"},
		{"%x", []interface{}{int32(0x7fffffff)}, "7fffffff"},
		{"100%%", nil, "100%"},
		// errors
		{"extra", []interface{}{"a", uint8(1)}, "extra%!(EXTRA)%!(EXTRA)"},
		{"missing %s", nil, "missing (MISSING)"},
		{"bad verb %q", []interface{}{"a"}, "bad verb %!(NOVERB)%!(EXTRA)"},
		{"trailing %", nil, "trailing %!(NOVERB)"},
		{"trailing width %12", nil, "trailing width %!(NOVERB)"},
		{"not an int %d", []interface{}{"foo"}, "not an int %!(WRONGTYPE)"},
		{"negative hex %x", []interface{}{int(-1)}, "negative hex %!(WRONGTYPE)"},
		{"not a string %s", []interface{}{uint64(1)}, "not a string %!(WRONGTYPE)"},
	}

	var buf bytes.Buffer
	for specIndex, spec := range specs {
		buf.Reset()
		fprintf(&buf, spec.format, spec.args...)

		if got := buf.String(); got != spec.expOutput {
			t.Errorf("[spec %d] expected to get\n%q\ngot:\n%q", specIndex, spec.expOutput, got)
		}
	}
}

func TestFprintfWithoutWriter(t *testing.T) {
	earlyPrintBuffer.Reset()
	defer earlyPrintBuffer.Reset()

	Fprintf(nil, "frame %d", uint64(5))

	var buf bytes.Buffer
	io.Copy(&buf, &earlyPrintBuffer)

	if exp, got := "frame 5", buf.String(); got != exp {
		t.Fatalf("expected the early print buffer to contain %q; got %q", exp, got)
	}
}

func TestPrintf(t *testing.T) {
	defer func() {
		outputSink = nil
	}()

	var buf bytes.Buffer
	SetOutputSink(&buf)

	Printf("[kmain] %s identity-mapped\n", "VGA text buffer")

	if exp, got := "[kmain] VGA text buffer identity-mapped\n", buf.String(); got != exp {
		t.Fatalf("expected to get:\n%q\ngot:\n%q", exp, got)
	}
}

func TestPrintfToRingBuffer(t *testing.T) {
	defer func() {
		outputSink = nil
	}()

	earlyPrintBuffer.Reset()
	SetOutputSink(nil)

	Printf("system memory map:\n")
	Printf("available memory: %dKb\n", uint64(639))

	if GetOutputSink() != nil {
		t.Fatal("expected GetOutputSink to return nil while output is buffered")
	}

	var buf bytes.Buffer
	SetOutputSink(&buf)

	if exp, got := "system memory map:\navailable memory: 639Kb\n", buf.String(); got != exp {
		t.Fatalf("expected buffered output to be replayed:\n%q\ngot:\n%q", exp, got)
	}

	if got := GetOutputSink(); got != &buf {
		t.Fatalf("expected GetOutputSink to return the active sink; got %v", got)
	}

	// The buffer is drained by the replay.
	var other bytes.Buffer
	SetOutputSink(&other)
	if other.Len() != 0 {
		t.Fatalf("expected nothing to be replayed twice; got %q", other.String())
	}
}
