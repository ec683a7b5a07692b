package chain

import "fmt"

// ChainError is any failure talking to the node: a transport problem, a
// malformed response, or a JSON-RPC error envelope. The remote message is
// carried verbatim so operators see exactly what the node said. The client
// never retries; retry policy belongs to callers.
type ChainError struct {
	// Method is the JSON-RPC method that failed
	Method string

	// Code is the JSON-RPC error code, 0 for transport-level failures
	Code int

	// Message is the remote error message, or a transport diagnostic
	Message string

	// Err is the underlying transport error, nil for RPC-level errors
	Err error
}

func (e *ChainError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("chain: %s failed: %s (code %d)", e.Method, e.Message, e.Code)
	}
	return fmt.Sprintf("chain: %s failed: %s", e.Method, e.Message)
}

func (e *ChainError) Unwrap() error {
	return e.Err
}

// IsRPCError reports whether the node itself rejected the request, as opposed
// to a transport failure. RPC rejections are deterministic for identical
// input; transport failures are transient.
func (e *ChainError) IsRPCError() bool {
	return e.Code != 0
}

func newTransportError(method string, err error) *ChainError {
	return &ChainError{
		Method:  method,
		Message: err.Error(),
		Err:     err,
	}
}

func newRPCError(method string, code int, message string) *ChainError {
	return &ChainError{
		Method:  method,
		Code:    code,
		Message: message,
	}
}
