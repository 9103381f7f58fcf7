package upstream

import "fmt"

// StoreError wraps any failure of a CRUD call against the upstream
// template store. The console does not interpret it beyond logging; it
// is surfaced to the caller and the pending mutation is abandoned.
type StoreError struct {
	Op     string
	Status int
	Err    error
}

func (e *StoreError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("template store: %s: HTTP %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("template store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// RenderError wraps any failure of the preview render call: network
// error, non-2xx status or a malformed payload. Callers recover from it
// locally by falling back to the raw template bodies.
type RenderError struct {
	Status int
	Err    error
}

func (e *RenderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("render: HTTP %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("render: %v", e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }
