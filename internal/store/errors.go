package store

import "fmt"

// UnknownIDError reports an ID the store never allocated. The store never
// hands out such IDs, so seeing one means an internal invariant was broken.
type UnknownIDError struct {
	ID ID
}

func (e *UnknownIDError) Error() string {
	return fmt.Sprintf("unknown element id %d", e.ID)
}

// NotSupportedError marks an operation that is deliberately left
// unimplemented rather than answered incorrectly.
type NotSupportedError struct {
	Operation string
	Reason    string
}

func (e *NotSupportedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s is not supported", e.Operation)
	}
	return fmt.Sprintf("%s is not supported: %s", e.Operation, e.Reason)
}
