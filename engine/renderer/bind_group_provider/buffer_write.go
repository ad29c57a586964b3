package bind_group_provider

// BufferWrite describes a single queue write into the buffer at a binding of a provider,
// starting at a byte offset.
type BufferWrite struct {
	Provider BindGroupProvider
	Binding  int
	Offset   uint64
	Data     []byte
}

// Fits reports whether the write stays inside the target buffer.
func (w BufferWrite) Fits() bool {
	size := w.Provider.BufferSize(w.Binding)
	return w.Offset <= size && uint64(len(w.Data)) <= size-w.Offset
}
