// Package extension turns raw planner payloads into the typed structs
// registered for each step kind. Custom kinds can be added through options so
// integrations may extend the step vocabulary without forking the planner.
package extension

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/viant/structology/conv"

	"github.com/viant/opsly/model"
)

// ErrUnknownKind indicates a proposal used a step kind with no registered
// payload type.
var ErrUnknownKind = errors.New("unknown step kind")

// Validator is implemented by payloads able to check their required fields.
type Validator interface {
	Validate() error
}

// Payloads converts untyped planner payloads into registered payload structs.
type Payloads struct {
	types     *Types
	converter *conv.Converter
}

// Types returns the underlying payload type registry.
func (p *Payloads) Types() *Types {
	return p.types
}

// Parse converts a raw payload into the typed struct registered for kind and
// validates required fields. A nil payload map yields a zero payload value.
func (p *Payloads) Parse(kind model.StepKind, payload map[string]interface{}) (interface{}, error) {
	aType := p.types.Lookup(kind)
	if aType == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	instance := reflect.New(aType.Type).Interface()
	if len(payload) > 0 {
		if err := p.converter.Convert(payload, instance); err != nil {
			return nil, fmt.Errorf("malformed %v payload: %w", kind, err)
		}
	}
	if validator, ok := instance.(Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("invalid %v payload: %w", kind, err)
		}
	}
	return instance, nil
}

// NewPayloads creates a payload parser with the built-in step kinds
// registered.
func NewPayloads(opts ...Option) *Payloads {
	options := conv.DefaultOptions()
	options.ClonePointerData = true
	options.IgnoreUnmapped = true

	ret := &Payloads{
		types:     NewTypes(),
		converter: conv.NewConverter(options),
	}
	for _, o := range opts {
		o(ret)
	}
	return ret
}
