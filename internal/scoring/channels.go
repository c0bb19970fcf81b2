package scoring

import (
	"golang.org/x/sync/errgroup"
)

// RunChannelsConcurrently runs the domain-channel and task-channel query
// functions concurrently (§4.5/§5: "the two channels run concurrently"),
// returning an error if either fails — unlike fire-and-forget notification
// dispatch, a channel query failure must propagate to the caller.
func RunChannelsConcurrently(domainFn, taskFn func() error) error {
	var g errgroup.Group
	g.Go(domainFn)
	g.Go(taskFn)
	return g.Wait()
}
