// pool.go bootstraps the Temporal worker process that executes
// BatchIngestWorkflow and its activities. Grounded on the
// teacher's dataset.Engine errgroup-fan-out idiom (internal/fedsync/
// dataset/engine.go, now removed — see DESIGN.md) for the "bounded
// concurrency over many independent units of work" shape, retargeted
// here at Temporal's own worker pool since C11 picked Temporal as its
// durability backend rather than a bare errgroup.
package orchestrator

import (
	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// WorkerConfig configures the Temporal worker process (spec.md §5's
// "pool size is configurable, default 10").
type WorkerConfig struct {
	HostPort  string
	Namespace string
	TaskQueue string
	PoolSize  int
}

// RunWorker dials Temporal, registers the batch workflow and its
// activities, and blocks serving the task queue until ctx's interrupt
// handler (installed by worker.Run) stops it. activities bundles every
// dependency the activities need (portal client, fetcher, parser
// facade, persistence store, task store, dead-letter queue).
func RunWorker(cfg WorkerConfig, activities *Activities) error {
	if cfg.PoolSize < 1 {
		cfg.PoolSize = 10
	}

	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
	})
	if err != nil {
		return eris.Wrap(err, "orchestrator: dial temporal")
	}
	defer c.Close()

	w := worker.New(c, cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize: cfg.PoolSize,
		MaxConcurrentWorkflowTaskExecutionSize: cfg.PoolSize,
	})
	w.RegisterWorkflow(BatchIngestWorkflow)
	w.RegisterActivity(activities)

	if err := w.Run(worker.InterruptCh()); err != nil {
		return eris.Wrap(err, "orchestrator: worker run")
	}
	return nil
}

// NewTemporalClient dials a standalone client for callers (C14) that
// only need to start/query workflows, not run them.
func NewTemporalClient(hostPort, namespace string) (client.Client, error) {
	c, err := client.Dial(client.Options{HostPort: hostPort, Namespace: namespace})
	if err != nil {
		return nil, eris.Wrap(err, "orchestrator: dial temporal")
	}
	return c, nil
}
