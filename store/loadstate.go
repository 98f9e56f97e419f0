package store

// LoadState tags whether a reference handle has been materialized from its
// backing store.
type LoadState int

const (
	// Unloaded marks a lazy handle whose fields beyond the identity have not
	// been populated. Reading or writing mapped fields on it is unsafe.
	Unloaded LoadState = iota
	// Loaded marks a fully materialized object.
	Loaded
)

// String returns the string representation of LoadState
func (ls LoadState) String() string {
	if ls == Unloaded {
		return "unloaded"
	}
	return "loaded"
}

// Materializable is implemented by objects that can exist as lazy handles.
type Materializable interface {
	LoadState() LoadState
}

// LoadStateSetter is implemented by objects whose load state is managed by
// their store.
type LoadStateSetter interface {
	SetLoadState(LoadState)
}

// Lazy is an embeddable load-state tag. Its zero value reports Loaded, so
// plain construction yields materialized objects and only stores flip handles
// to Unloaded.
type Lazy struct {
	unloaded bool
}

// LoadState implements Materializable.
func (l *Lazy) LoadState() LoadState {
	if l.unloaded {
		return Unloaded
	}
	return Loaded
}

// SetLoadState implements LoadStateSetter.
func (l *Lazy) SetLoadState(state LoadState) {
	l.unloaded = state == Unloaded
}

// IsMaterialized reports whether obj is safe for field access. Objects that do
// not carry a load state are assumed materialized.
func IsMaterialized(obj any) bool {
	if obj == nil {
		return false
	}
	if m, ok := obj.(Materializable); ok {
		return m.LoadState() == Loaded
	}
	return true
}
