package polling

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sw33tLie/creatorlive/pkg/platforms"
)

// Warmer runs the aggregator on a cron schedule so provider caches are
// already filled when requests arrive.
type Warmer struct {
	agg     *Aggregator
	cron    *cron.Cron
	timeout time.Duration
	log     platforms.Logger

	runs atomic.Int64
	last atomic.Pointer[Result]
}

// NewWarmer schedules agg on a cron schedule, e.g. "@every 2m" or "*/2 * * * *".
func NewWarmer(agg *Aggregator, schedule string, timeout time.Duration, log platforms.Logger) (*Warmer, error) {
	if timeout <= 0 {
		timeout = time.Minute
	}
	w := &Warmer{
		agg:     agg,
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		timeout: timeout,
		log:     platforms.LoggerOrNop(log),
	}
	if _, err := w.cron.AddFunc(schedule, w.Run); err != nil {
		return nil, fmt.Errorf("invalid warm schedule %q: %w", schedule, err)
	}
	return w, nil
}

func (w *Warmer) Start() { w.cron.Start() }

// Stop halts scheduling and waits for a running pass to finish.
func (w *Warmer) Stop() { <-w.cron.Stop().Done() }

// Run performs one pass immediately.
func (w *Warmer) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	res, err := w.agg.Poll(ctx)
	w.runs.Add(1)
	if err != nil {
		w.log.Warnf("Cache warm-up failed: %v", err)
		return
	}
	w.last.Store(res)
	w.log.Debugf("Cache warm-up done: %d profiles, %d live video, %d live spaces", res.Profiles, res.VideoLive, res.SpaceLive)
}

// Runs returns how many passes have completed.
func (w *Warmer) Runs() int64 { return w.runs.Load() }

// Last returns the most recent successful pass, or nil.
func (w *Warmer) Last() *Result { return w.last.Load() }
