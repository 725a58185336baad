package extension

import (
	"reflect"

	"github.com/viant/structology/conv"
	"github.com/viant/x"

	"github.com/viant/opsly/model"
)

type Option func(*Payloads)

// WithType registers a payload type for a custom step kind.
func WithType(kind model.StepKind, rType reflect.Type) Option {
	return func(p *Payloads) {
		p.types.Register(kind, x.NewType(rType))
	}
}

// WithConverter overrides the payload converter.
func WithConverter(converter *conv.Converter) Option {
	return func(p *Payloads) {
		p.converter = converter
	}
}
