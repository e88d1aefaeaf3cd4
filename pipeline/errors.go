package pipeline

import "fmt"

// DuplicateNameError is returned by an Add* call when the requested name
// is already taken in the pipeline.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("pipeline: context named %q already exists", e.Name)
}

// NotFoundError is returned by Remove/Replace/Context/Get when no
// context matches the given name or handler.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("pipeline: no context named %q", e.Name)
}

// NotSharableError is returned when the same handler instance is added
// to more than one pipeline position without implementing Sharable.
type NotSharableError struct {
	Name string
}

func (e *NotSharableError) Error() string {
	return fmt.Sprintf("pipeline: handler for %q is already added elsewhere and is not Sharable", e.Name)
}

// UnhandledExceptionError wraps a cause that reached Tail's default
// exception_caught without any handler upstream claiming it.
type UnhandledExceptionError struct {
	Cause error
}

func (e *UnhandledExceptionError) Error() string {
	return fmt.Sprintf("pipeline: exception reached the end of the pipeline unhandled: %v", e.Cause)
}

func (e *UnhandledExceptionError) Unwrap() error { return e.Cause }

// PipelineError wraps a failure from a lifecycle callback (handler_added
// or handler_removed) rather than from ordinary event handling. A
// failure during handler_added removes the context that raised it.
type PipelineError struct {
	Phase string
	Cause error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline: %s failed: %v", e.Phase, e.Cause)
}

func (e *PipelineError) Unwrap() error { return e.Cause }

// HandlerError wraps a failure (returned error or recovered panic) from
// a user handler's event callback before it is fired onward as
// exception_caught at the next context.
type HandlerError struct {
	Cause error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("pipeline: handler error: %v", e.Cause)
}

func (e *HandlerError) Unwrap() error { return e.Cause }

// UnhandledInboundError is logged when an inbound message reaches Tail
// without any handler upstream consuming it.
type UnhandledInboundError struct {
	Type string
}

func (e *UnhandledInboundError) Error() string {
	return fmt.Sprintf("pipeline: message of type %s reached tail unhandled", e.Type)
}
