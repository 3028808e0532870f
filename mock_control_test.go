package fleet

import (
	"context"
	"sync"
)

// recordingControl is a ProcessControl that records every request and answers
// through respond, defaulting to OutcomeDone
type recordingControl struct {
	mu       sync.Mutex
	requests []*Request
	respond  func(req *Request) (Outcome, error)
}

func (c *recordingControl) Run(_ context.Context, req *Request) (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, req)
	if c.respond == nil {
		return OutcomeDone, nil
	}
	return c.respond(req)
}

func (c *recordingControl) Requests() []*Request {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*Request, len(c.requests))
	copy(out, c.requests)
	return out
}

// PIDFiles returns the PID file of every recorded request, in order
func (c *recordingControl) PIDFiles() []string {
	reqs := c.Requests()
	out := make([]string, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.PIDFile)
	}
	return out
}
