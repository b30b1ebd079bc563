package api

// Conn is an opaque bidirectional text channel as seen by the broker.
// Implementations own the underlying transport; the broker only reads
// frames, writes frames, and reacts to closure.
type Conn interface {
	// ID returns a stable identity used for logging and equality.
	ID() string
	// ReadText blocks until the next text frame arrives or the
	// connection dies (any error is terminal for the read loop).
	ReadText() ([]byte, error)
	// WriteText sends one text frame. Errors are reported, never fatal.
	WriteText(data []byte) error
	// Close tears down the transport. Safe to call more than once.
	Close() error
}

// Role tags a connection's classification. A connection starts
// Unclassified and is promoted when its first meaningful frame shows
// what it is; the tag is bookkeeping only and never drives routing.
type Role int

const (
	RoleUnclassified Role = iota
	RoleController
	RoleExtension
)

func (r Role) String() string {
	switch r {
	case RoleController:
		return "controller"
	case RoleExtension:
		return "extension"
	default:
		return "unclassified"
	}
}
