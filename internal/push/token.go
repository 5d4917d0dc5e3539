// Package push acquires a device push identity and reports it to the care
// backend. Registration degrades rather than fails: missing capability yields
// no token, a missing or broken remote push service yields a local-only
// token, and backend reporting failures surface as a false return so login
// and signup flows are never blocked by this subsystem.
package push

// Token is a device push identity. The zero value means no token is
// available (capability missing or permission denied). A local-only token
// keeps local scheduling alive while remote delivery is unavailable.
//
// Local-only is carried as a flag rather than a magic string value, so a real
// token that happens to equal the wire sentinel can never be mistaken for the
// degraded mode.
type Token struct {
	value     string
	localOnly bool
}

// localOnlyWire is the sentinel the backend protocol uses for tokens that
// cannot receive remote pushes.
const localOnlyWire = "local-only"

// NewToken wraps a platform-issued push token.
func NewToken(value string) Token {
	return Token{value: value}
}

// IsLocalOnlyWire reports whether a reported token value is the local-only
// marker. The registration endpoint uses it to keep degraded devices out of
// remote fan-out.
func IsLocalOnlyWire(value string) bool {
	return value == localOnlyWire
}

// LocalOnly returns the degraded-mode token.
func LocalOnly() Token {
	return Token{localOnly: true}
}

// IsZero reports whether no token is available at all.
func (t Token) IsZero() bool {
	return !t.localOnly && t.value == ""
}

// IsLocalOnly reports whether the token is the degraded local-only marker.
func (t Token) IsLocalOnly() bool {
	return t.localOnly
}

// String renders the wire form sent to the backend.
func (t Token) String() string {
	if t.localOnly {
		return localOnlyWire
	}
	return t.value
}
