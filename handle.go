package soma

import "github.com/google/uuid"

// Handle is the opaque 128-bit identity of a soma instance. Handles are
// minted once per soma and are the sole addressing primitive in the
// runtime. They are value types: compare with ==, copy freely.
type Handle [16]byte

// NewHandle mints a fresh random handle. Collisions within one process are
// treated as impossible.
func NewHandle() Handle {
	return Handle(uuid.New())
}

// ParseHandle reads a handle back from its canonical string form.
func ParseHandle(s string) (Handle, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return Handle{}, err
	}
	return Handle(id), nil
}

// String renders the handle in canonical UUID form for diagnostics.
func (h Handle) String() string {
	return uuid.UUID(h).String()
}

// IsZero reports whether the handle is the zero value, which is never a
// valid soma identity.
func (h Handle) IsZero() bool {
	return h == Handle{}
}
