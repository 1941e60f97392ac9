package kernel

// Error describes a kernel error. All kernel errors must be defined as global
// variables that are pointers to the Error structure. The memory subsystems
// return errors before the Go allocator is available so errors.New cannot be
// used; callers compare the returned pointer against the exported sentinel.
type Error struct {
	// The module where the error occurred.
	Module string

	// The error message
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}
