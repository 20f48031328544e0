// Package radio defines the capability boundary the Transceiver
// consumes: a minimal send/receive interface, plus an optional
// parameter-introspection capability that hardware-backed radios may
// implement for UI/ops tooling. Concrete hardware drivers (SX127x
// register access) are out of scope for this repository; the
// loopback and ipcradio subpackages are the reference/test
// implementations described in spec.md §1 and §6.
package radio

import (
	"context"
	"errors"
)

// Radio is the capability every Transceiver backend must provide.
// Receive returns (nil, nil) when no frame is currently available —
// it is not required to block, though implementations may use ctx's
// deadline to wait briefly.
type Radio interface {
	Send(ctx context.Context, frame []byte) error
	Receive(ctx context.Context) ([]byte, error)
}

// ParamKind enumerates the type of a declared tunable parameter.
type ParamKind int

const (
	ParamInt ParamKind = iota
	ParamFloat
	ParamEnum
	ParamBool
)

func (k ParamKind) String() string {
	switch k {
	case ParamInt:
		return "int"
	case ParamFloat:
		return "float"
	case ParamEnum:
		return "enum"
	case ParamBool:
		return "bool"
	default:
		return "unknown"
	}
}

// ParamDescriptor describes one tunable radio parameter: its name,
// type, valid range or enumerated values, unit, a human description,
// a step size for numeric types, and whether it is read-only.
type ParamDescriptor struct {
	Name        string
	Kind        ParamKind
	Min, Max    float64  // ParamInt / ParamFloat
	Enum        []string // ParamEnum
	Unit        string
	Description string
	Step        float64
	ReadOnly    bool
}

// ParamRadio is the optional introspection capability a hardware radio
// may additionally implement, letting an operator enumerate and
// get/set tunables (frequency, spreading factor, tx power, ...)
// without the core needing to know about any specific radio's knobs.
type ParamRadio interface {
	Radio
	Parameters() []ParamDescriptor
	GetParam(name string) (any, error)
	SetParam(name string, value any) error
}

// ErrInvalidParameter is returned by SetParam when the parameter is
// read-only or the value violates the descriptor's declared
// constraints. An unknown name yields ErrUnknownParameter instead.
var ErrInvalidParameter = errors.New("radio: invalid parameter")

// ErrUnknownParameter is returned by GetParam/SetParam for a name with
// no matching descriptor.
var ErrUnknownParameter = errors.New("radio: unknown parameter")
