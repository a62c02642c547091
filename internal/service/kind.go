package service

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind is the protocol strategy used to probe a service. The numeric values
// are persisted and must not be reordered.
type Kind int64

const (
	KindHTTP Kind = iota
	KindTCP
	KindPing
	KindSSL
)

func (k Kind) String() string {
	switch k {
	case KindHTTP:
		return "HTTP"
	case KindTCP:
		return "TCP"
	case KindPing:
		return "PING"
	case KindSSL:
		return "SSL"
	default:
		return fmt.Sprintf("Kind(%d)", int64(k))
	}
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k >= KindHTTP && k <= KindSSL
}

// ParseKind accepts the kind name in any case.
func ParseKind(s string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "HTTP":
		return KindHTTP, nil
	case "TCP":
		return KindTCP, nil
	case "PING":
		return KindPing, nil
	case "SSL":
		return KindSSL, nil
	default:
		return 0, fmt.Errorf("unknown check kind %q", s)
	}
}

// UnmarshalJSON accepts either the stored number or the kind name, so a
// service read from the list can be written back unchanged.
func (k *Kind) UnmarshalJSON(b []byte) error {
	var n int64
	if err := json.Unmarshal(b, &n); err == nil {
		*k = Kind(n)
		return nil
	}

	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return fmt.Errorf("check type must be a number or a name: %w", err)
	}
	kind, err := ParseKind(name)
	if err != nil {
		return err
	}
	*k = kind
	return nil
}
