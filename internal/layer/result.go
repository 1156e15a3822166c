package layer

import "fmt"

// Code is the closed set of return dispositions a layer operation can
// report. Flow-control codes are not errors; local-validation and
// remote-failure codes are fatal to the current operation.
type Code int

const (
	// OK means the step completed; the caller continues.
	OK Code = iota
	// Pending means a lower layer is still handshaking; the caller
	// retries the same operation later.
	Pending
	// Partial means the response is incomplete; the caller must read
	// more bytes and re-enter ProcessResponse at the same offsets.
	Partial
	// Retry means the remote replied with a recoverable error and the
	// layer adjusted its own state; the caller must redrive Connect.
	Retry

	// TooSmall means the frame buffer cannot hold the layer's header.
	TooSmall
	// OutOfBounds means a cursor or length fell outside the buffer.
	OutOfBounds
	// BadConfig means a layer's own offset bookkeeping diverged.
	BadConfig
	// NoMem means an allocation the layer needed could not be made.
	NoMem

	// BadReply means the remote's response is structurally invalid.
	BadReply
	// BadStatus means the remote reported a non-zero status this
	// layer does not retry on.
	BadStatus
	// RemoteErr means the remote reported an unrecoverable CIP status.
	RemoteErr
)

func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case Pending:
		return "PENDING"
	case Partial:
		return "PARTIAL"
	case Retry:
		return "RETRY"
	case TooSmall:
		return "TOO_SMALL"
	case OutOfBounds:
		return "OUT_OF_BOUNDS"
	case BadConfig:
		return "BAD_CONFIG"
	case NoMem:
		return "NO_MEM"
	case BadReply:
		return "BAD_REPLY"
	case BadStatus:
		return "BAD_STATUS"
	case RemoteErr:
		return "REMOTE_ERR"
	default:
		return fmt.Sprintf("Code(%d)", int(c))
	}
}

// Result is the outcome of a single layer operation. It is returned by
// value instead of a plain error so flow-control dispositions (which
// are not failures) cannot be silently confused with fatal ones.
type Result struct {
	Code Code
	// Status is the raw CIP general status byte, when Code came from
	// a parsed remote reply (BadStatus, RemoteErr, Retry).
	Status uint8
	// ExtendedStatus is the 16-bit extended status word, when present.
	ExtendedStatus uint16
	// Err carries additional context for BadReply/BadConfig/NoMem/
	// OutOfBounds/TooSmall and for logging RemoteErr/BadStatus.
	Err error
}

// Ok reports whether the result is the non-fatal, non-flow-control
// success disposition.
func (r Result) Ok() bool { return r.Code == OK }

// Fatal reports whether the result is a local-validation or
// remote-failure disposition that should abort the current operation.
func (r Result) Fatal() bool {
	switch r.Code {
	case TooSmall, OutOfBounds, BadConfig, NoMem, BadReply, BadStatus, RemoteErr:
		return true
	default:
		return false
	}
}

func (r Result) Error() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %v", r.Code, r.Err)
	}
	if r.Status != 0 {
		return fmt.Sprintf("%s: status=0x%02X extended=0x%04X", r.Code, r.Status, r.ExtendedStatus)
	}
	return r.Code.String()
}

func okResult() Result                { return Result{Code: OK} }
func pendingResult() Result           { return Result{Code: Pending} }
func retryResult() Result             { return Result{Code: Retry} }
func errResult(c Code, err error) Result {
	return Result{Code: c, Err: err}
}
func remoteErrResult(status uint8, ext uint16) Result {
	return Result{Code: RemoteErr, Status: status, ExtendedStatus: ext}
}
