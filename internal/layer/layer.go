package layer

// Layer is the capability every protocol layer in the stack exposes.
// The engine drives these six operations in a fixed direction: Connect
// is hybrid (lower layers first, then this layer); Disconnect tears
// this layer down before lower layers;
// ReserveSpace and ProcessResponse are bottom-up (delegate to Next
// first); BuildLayer is top-down (act, then delegate to Next).
type Layer interface {
	// Initialize resets runtime state for a fresh connection attempt
	// without reallocating the layer. Safe to call repeatedly.
	Initialize() Result

	// Connect asks lower layers to connect first; only once they
	// report OK does this layer attempt its own handshake.
	Connect(f *Frame) Result

	// Disconnect tears down this layer's session, then lower layers.
	Disconnect(f *Frame) Result

	// ReserveSpace delegates to Next, then reserves this layer's
	// header region by advancing f.Start and clamping f.End.
	ReserveSpace(f *Frame) Result

	// BuildLayer writes this layer's header into the region it
	// reserved, then delegates to Next.
	BuildLayer(f *Frame) Result

	// ProcessResponse delegates to Next, then interprets whatever
	// window Next has left at f.Start.
	ProcessResponse(f *Frame) Result

	// Next returns the layer beneath this one, or nil at the bottom.
	Next() Layer
}

// Close releases layer resources recursively. Layers in this stack own
// no unmanaged resources; Close exists so a future layer that does
// (e.g. one holding a file handle) has somewhere to hook in without
// changing the interface. It mirrors the source's destroy_layer.
func Close(l Layer) error {
	for cur := l; cur != nil; cur = cur.Next() {
		if closer, ok := cur.(interface{ close() error }); ok {
			if err := closer.close(); err != nil {
				return err
			}
		}
	}
	return nil
}
