package extension

import (
	"reflect"
	"sort"
	"sync"

	"github.com/viant/x"

	"github.com/viant/opsly/model"
)

// Types registers the Go payload type backing each step kind. The registry
// defines the closed set of kinds a planner proposal may use; kinds without a
// registered type are rejected before execution.
type Types struct {
	x.Registry
	kinds map[model.StepKind]*x.Type
	mux   sync.RWMutex
}

// Register adds a payload type for the supplied step kind.
func (t *Types) Register(kind model.StepKind, dataType *x.Type) {
	t.mux.Lock()
	defer t.mux.Unlock()
	t.kinds[kind] = dataType
	t.Registry.Register(dataType)
}

// Lookup returns the payload type registered for a step kind, or nil.
func (t *Types) Lookup(kind model.StepKind) *x.Type {
	t.mux.RLock()
	defer t.mux.RUnlock()
	return t.kinds[kind]
}

// Kinds returns the registered step kinds in lexical order.
func (t *Types) Kinds() []model.StepKind {
	t.mux.RLock()
	defer t.mux.RUnlock()
	ret := make([]model.StepKind, 0, len(t.kinds))
	for kind := range t.kinds {
		ret = append(ret, kind)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i] < ret[j] })
	return ret
}

// NewTypes creates a payload type registry pre-populated with the built-in
// step kinds.
func NewTypes(options ...x.RegistryOption) *Types {
	ret := &Types{
		Registry: *x.NewRegistry(options...),
		kinds:    make(map[model.StepKind]*x.Type),
	}
	ret.Register(model.KindShellCommand, x.NewType(reflect.TypeOf(model.ShellCommand{})))
	ret.Register(model.KindCloneRepository, x.NewType(reflect.TypeOf(model.CloneRepository{})))
	ret.Register(model.KindAskUser, x.NewType(reflect.TypeOf(model.AskUser{})))
	ret.Register(model.KindTerminate, x.NewType(reflect.TypeOf(model.Terminate{})))
	return ret
}
