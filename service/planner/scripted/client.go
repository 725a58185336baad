// Package scripted provides a deterministic planner client replaying a fixed
// sequence of proposals. It backs tests and offline examples where no NL
// service is reachable.
package scripted

import (
	"context"
	"sync"

	"github.com/viant/opsly/service/planner"
)

// Client replays proposals in order; once exhausted it signals done.
type Client struct {
	mux       sync.Mutex
	proposals []*planner.Proposal
	requests  []*planner.Request
}

// New creates a scripted client with the given proposal sequence.
func New(proposals ...*planner.Proposal) *Client {
	return &Client{proposals: proposals}
}

// ProposeStep pops the next scripted proposal, recording the request.
func (c *Client) ProposeStep(ctx context.Context, request *planner.Request) (*planner.Proposal, error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	c.requests = append(c.requests, request)
	if len(c.proposals) == 0 {
		return &planner.Proposal{Done: true, Reason: "script exhausted"}, nil
	}
	proposal := c.proposals[0]
	c.proposals = c.proposals[1:]
	return proposal, nil
}

// Push appends proposals to the remaining script.
func (c *Client) Push(proposals ...*planner.Proposal) {
	c.mux.Lock()
	defer c.mux.Unlock()
	c.proposals = append(c.proposals, proposals...)
}

// Requests returns every request seen so far.
func (c *Client) Requests() []*planner.Request {
	c.mux.Lock()
	defer c.mux.Unlock()
	return append([]*planner.Request{}, c.requests...)
}

var _ planner.Client = (*Client)(nil)
