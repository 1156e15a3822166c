package layer

// Stack drives a layer chain through one full request/response cycle:
// reserve space bottom-up, build the frame top-down, hand the buffer
// to the transport, then process the reply bottom-up.
type Stack struct {
	Top Layer
}

// NewStack wraps the topmost layer of an already-constructed chain.
func NewStack(top Layer) *Stack {
	return &Stack{Top: top}
}

// Initialize resets every layer in the chain: the top layer's
// Initialize recurses into Next itself.
func (s *Stack) Initialize() Result {
	if s.Top == nil {
		return okResult()
	}
	return s.Top.Initialize()
}

// Connect drives the hybrid connect traversal starting at the top
// layer (which itself recurses into Next first). Callers should
// redrive Connect on a Pending or Retry result.
func (s *Stack) Connect(f *Frame) Result {
	if s.Top == nil {
		return okResult()
	}
	return s.Top.Connect(f)
}

// Disconnect drives the disconnect traversal starting at the top layer.
func (s *Stack) Disconnect(f *Frame) Result {
	if s.Top == nil {
		return okResult()
	}
	return s.Top.Disconnect(f)
}

// PrepareFrame reserves space bottom-up over a fresh Frame of the
// given capacity, leaving f.Start positioned for the topmost layer's
// caller (the application) to write its own payload, and f.End
// clamped to the lowest layer's negotiated budget.
func (s *Stack) PrepareFrame(capacity int) (*Frame, Result) {
	f := NewFrame(make([]byte, capacity))
	f.End = capacity
	if s.Top == nil {
		return f, okResult()
	}
	if r := s.Top.ReserveSpace(f); !r.Ok() {
		return f, r
	}
	return f, okResult()
}

// BuildFrame drives the top-down BuildLayer traversal once the
// application has written its payload into the window ReserveSpace
// left at f.Start.
func (s *Stack) BuildFrame(f *Frame) Result {
	if s.Top == nil {
		return okResult()
	}
	return s.Top.BuildLayer(f)
}

// ProcessResponse drives the bottom-up ProcessResponse traversal over
// a frame populated by the transport.
func (s *Stack) ProcessResponse(f *Frame) Result {
	if s.Top == nil {
		return okResult()
	}
	return s.Top.ProcessResponse(f)
}

// Close releases the whole chain.
func (s *Stack) Close() error {
	return Close(s.Top)
}
