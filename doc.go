// Package opsly provides a conversational control loop for operating remote
// machines.
//
// A user states an intent in natural language, a planner proposes one
// verifiable step at a time, the executor runs it over an authenticated
// channel and the loop observes the outcome before planning the next step.
// The pluggable service layers include:
//
//   - controller: the plan, execute, observe loop per turn
//   - store: session state behind a per-key exclusive lease
//   - executor: remote command transport over gosh runners
//   - planner: step sequencing with stop policy and validation
//   - classifier: transient, user-actionable or fatal failure labels
//   - dispatcher: inbound turn queue and worker pool
//
// Opsly is designed to be embedded in host applications.  End-users
// typically interact with the engine via the high-level Service façade
// exposed by the root package:
//
//	srv := opsly.New(opsly.WithTarget("ssh://dev01:22", "ssh/dev01"))
//	rt := srv.Runtime()
//	_ = rt.Start(ctx)
//	reply, _ := rt.Handle(ctx, &opsly.Message{UserID: "alice", ChannelID: "ops", Text: "check disk usage"})
//	fmt.Println(reply.Text)
//
// For more details see the README and individual sub-packages.
package opsly
