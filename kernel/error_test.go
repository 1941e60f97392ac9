package kernel

import "testing"

func TestKernelError(t *testing.T) {
	var (
		errFoo       = &Error{Module: "foo", Message: "error message"}
		errBar       = &Error{Module: "foo", Message: "error message"}
		err    error = errFoo
	)

	if err.Error() != errFoo.Message {
		t.Fatalf("expected to err.Error() to return %q; got %q", errFoo.Message, err.Error())
	}

	// Sentinels are compared by identity
	if err == error(errBar) {
		t.Fatal("expected errors with the same module and message to be distinct")
	}
}
