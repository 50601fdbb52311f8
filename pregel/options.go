package pregel

import (
	"time"

	"github.com/corvidworks/pregel/store"
	"github.com/corvidworks/pregel/stream"
)

// Option is a functional option for configuring a Graph, in the same
// chainable, self-documenting style as the rest of the library's
// constructors.
//
//	g, err := pregel.NewGraph(persist.NewMemorySaver(),
//	    pregel.WithMaxSteps(100),
//	    pregel.WithMaxConcurrentTasks(16),
//	    pregel.WithDefaultNodeTimeout(10*time.Second),
//	)
type Option func(*graphConfig) error

// graphConfig collects options before they're applied to a Graph,
// allowing validation and composition ahead of construction.
type graphConfig struct {
	opts Options
}

// Options holds every tunable a Graph accepts. NewGraph takes only Option
// values, so its fields are set through the With* functions below.
type Options struct {
	MaxSteps             int
	MaxConcurrentTasks   int
	QueueDepth           int
	BackpressureTimeout  time.Duration
	DefaultNodeTimeout   time.Duration
	RunWallClockBudget   time.Duration

	ReplayMode   bool
	StrictReplay bool

	InterruptBefore []string
	InterruptAfter  []string

	Store    store.Store
	Emitter  stream.Emitter
	Metrics  *PrometheusMetrics
	CostTracker *CostTracker
}

// WithMaxSteps makes Run return ErrMaxStepsExceeded once the thread's
// superstep index exceeds n, guarding against an unconditional cycle in the
// graph. Superstep indices start at 0 and continue across a thread's
// checkpoints, so a thread runs at most supersteps 0 through n. Default: 0
// (unlimited — use with caution).
func WithMaxSteps(n int) Option {
	return func(cfg *graphConfig) error {
		cfg.opts.MaxSteps = n
		return nil
	}
}

// WithMaxConcurrentTasks bounds how many of a superstep's tasks dispatch
// at once. Default: 8. Set to 0 to execute a superstep's tasks
// sequentially (useful for debugging non-determinism).
func WithMaxConcurrentTasks(n int) Option {
	return func(cfg *graphConfig) error {
		cfg.opts.MaxConcurrentTasks = n
		return nil
	}
}

// WithQueueDepth sets Options.QueueDepth. Default: 1024. The engine stores
// the value but does not read it: a superstep's planned tasks are not
// bounded by it and no backpressure is applied.
func WithQueueDepth(n int) Option {
	return func(cfg *graphConfig) error {
		cfg.opts.QueueDepth = n
		return nil
	}
}

// WithBackpressureTimeout sets Options.BackpressureTimeout. Default: 30s.
// The engine stores the value but does not read it.
func WithBackpressureTimeout(d time.Duration) Option {
	return func(cfg *graphConfig) error {
		cfg.opts.BackpressureTimeout = d
		return nil
	}
}

// WithDefaultNodeTimeout sets the timeout applied to any task whose node
// has no NodePolicy.Timeout of its own. Default: 30s.
func WithDefaultNodeTimeout(d time.Duration) Option {
	return func(cfg *graphConfig) error {
		cfg.opts.DefaultNodeTimeout = d
		return nil
	}
}

// WithRunWallClockBudget caps the total wall-clock time Run may spend
// across every superstep. Default: 10m. Zero disables the budget.
func WithRunWallClockBudget(d time.Duration) Option {
	return func(cfg *graphConfig) error {
		cfg.opts.RunWallClockBudget = d
		return nil
	}
}

// WithReplayMode sets Runtime.InReplayMode for every task, so a node can
// look up recorded task I/O (Runtime.LookupRecordedIO) instead of calling
// the external service. The engine still runs every node and does not read
// SideEffectPolicy.Recordable. Default: false.
func WithReplayMode(enabled bool) Option {
	return func(cfg *graphConfig) error {
		cfg.opts.ReplayMode = enabled
		return nil
	}
}

// WithStrictReplay sets Options.StrictReplay. Default: false. The engine
// stores the value but does not read it.
func WithStrictReplay(enabled bool) Option {
	return func(cfg *graphConfig) error {
		cfg.opts.StrictReplay = enabled
		return nil
	}
}

// WithInterruptBefore pauses the run immediately before any of the named
// nodes executes, surfacing an InterruptedError for human review.
func WithInterruptBefore(nodeNames ...string) Option {
	return func(cfg *graphConfig) error {
		cfg.opts.InterruptBefore = append(cfg.opts.InterruptBefore, nodeNames...)
		return nil
	}
}

// WithInterruptAfter pauses the run immediately after any of the named
// nodes executes, before its writes are applied.
func WithInterruptAfter(nodeNames ...string) Option {
	return func(cfg *graphConfig) error {
		cfg.opts.InterruptAfter = append(cfg.opts.InterruptAfter, nodeNames...)
		return nil
	}
}

// WithStore attaches the long-lived key-value Store nodes can reach via
// Runtime.GetStore, for state that outlives a single thread's checkpoint
// history.
func WithStore(s store.Store) Option {
	return func(cfg *graphConfig) error {
		cfg.opts.Store = s
		return nil
	}
}

// WithEmitter attaches the stream.Emitter that receives every StreamChunk
// a run produces. Typically a *stream.Multiplexer fanning out to several
// backends.
func WithEmitter(e stream.Emitter) Option {
	return func(cfg *graphConfig) error {
		cfg.opts.Emitter = e
		return nil
	}
}

// WithMetrics enables Prometheus metrics collection for the run.
func WithMetrics(metrics *PrometheusMetrics) Option {
	return func(cfg *graphConfig) error {
		cfg.opts.Metrics = metrics
		return nil
	}
}

// WithCostTracker enables LLM cost tracking for the run, reachable from
// nodes through Runtime so model integrations can report token usage.
func WithCostTracker(tracker *CostTracker) Option {
	return func(cfg *graphConfig) error {
		cfg.opts.CostTracker = tracker
		return nil
	}
}
