// Package device defines the device directory's domain model: a registered
// sensor, its transport protocol, and its spatial location.
package device

import (
	"fmt"
	"strings"

	"github.com/c360/envmon/errors"
)

// Protocol identifies the transport a device reports over.
type Protocol string

// Supported transport protocols
const (
	// ProtocolRPC is the synchronous request/reply transport over NATS core.
	ProtocolRPC Protocol = "rpc"
	// ProtocolBroker is the at-least-once JetStream publish transport.
	ProtocolBroker Protocol = "broker"
	// ProtocolHTTP is the HTTP POST transport with bounded retry.
	ProtocolHTTP Protocol = "http"
)

// Protocols returns all supported protocols in a stable order.
func Protocols() []Protocol {
	return []Protocol{ProtocolRPC, ProtocolBroker, ProtocolHTTP}
}

// ParseProtocol parses a protocol name case-insensitively.
func ParseProtocol(s string) (Protocol, error) {
	switch Protocol(strings.ToLower(strings.TrimSpace(s))) {
	case ProtocolRPC:
		return ProtocolRPC, nil
	case ProtocolBroker:
		return ProtocolBroker, nil
	case ProtocolHTTP:
		return ProtocolHTTP, nil
	default:
		return "", errors.WrapInvalid(
			fmt.Errorf("unsupported protocol %q", s),
			"device", "ParseProtocol", "parse protocol")
	}
}

// String returns the protocol name.
func (p Protocol) String() string {
	return string(p)
}

// Device is a registered sensor. The id is globally unique and immutable
// after creation; location and the active flag are mutated only by the
// directory CRUD surface, never by the core.
type Device struct {
	ID         string   `json:"id"`
	Protocol   Protocol `json:"protocol"`
	Room       string   `json:"room"`
	Department string   `json:"department"`
	Floor      string   `json:"floor"`
	Building   string   `json:"building"`
	Active     bool     `json:"active"`
	CreatedAt  int64    `json:"createdAt,omitempty"`
	UpdatedAt  int64    `json:"updatedAt,omitempty"`
}

// Validate checks required fields on a device record.
func (d Device) Validate() error {
	if _, err := ParseProtocol(string(d.Protocol)); err != nil {
		return err
	}
	missing := []string{}
	if d.Room == "" {
		missing = append(missing, "room")
	}
	if d.Department == "" {
		missing = append(missing, "department")
	}
	if d.Floor == "" {
		missing = append(missing, "floor")
	}
	if d.Building == "" {
		missing = append(missing, "building")
	}
	if len(missing) > 0 {
		return errors.WrapInvalid(
			fmt.Errorf("missing fields: %s", strings.Join(missing, ", ")),
			"device", "Validate", "validate location")
	}
	return nil
}
