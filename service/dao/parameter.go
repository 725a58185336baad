package dao

// Parameter narrows a List call, e.g. by session status.
type Parameter struct {
	Name  string
	Value interface{}
}

// NewParameter builds a list filter; multiple values match any of them.
func NewParameter(name string, values ...string) *Parameter {
	if len(values) == 1 {
		return &Parameter{Name: name, Value: values[0]}
	}
	return &Parameter{Name: name, Value: values}
}
