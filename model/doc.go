// Package model contains the in-memory representation of steps, execution
// results and failure classifications shared across the opsly services.
//
// A step is the unit of work the planner proposes and the controller runs;
// the `session` and `turn` sub-packages build the conversational state on
// top of these types.  The root model package keeps the closed step-kind set
// in one place so that every layer validates against the same variants.
package model
