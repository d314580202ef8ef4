// Package dispatcher runs every feed frame through decoding, filtering, enrichment and publishing,
// each frame in a goroutine of its own.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/Brotsalat/zkill-ws-slack/killmail"
	"github.com/Brotsalat/zkill-ws-slack/logging"
	"github.com/Brotsalat/zkill-ws-slack/notification"
	"github.com/Brotsalat/zkill-ws-slack/reference"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Resolver looks up the location hierarchy of a solar system.
type Resolver interface {
	Resolve(ctx context.Context, systemID int64) (*reference.Location, error)
}

// Publisher delivers a notification.
type Publisher interface {
	Publish(ctx context.Context, payload notification.Payload) error
}

// Config defines which kills are notified about and how many are handled at once.
type Config struct {
	Watched  killmail.EntityRef
	MatchAll bool

	// MaxInFlight bounds the number of frames processed concurrently. Zero means unbounded.
	MaxInFlight int64
}

// Dispatcher turns raw feed frames into notifications.
type Dispatcher struct {
	cfg       Config
	resolver  Resolver
	publisher Publisher
	metrics   *Metrics
	logger    *logging.Logger

	sem *semaphore.Weighted // sem is nil unless Config.MaxInFlight is set.
	wg  sync.WaitGroup
}

// New creates a Dispatcher.
func New(cfg Config, resolver Resolver, publisher Publisher, metrics *Metrics, logger *logging.Logger) *Dispatcher {
	d := &Dispatcher{
		cfg:       cfg,
		resolver:  resolver,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}

	if cfg.MaxInFlight > 0 {
		d.sem = semaphore.NewWeighted(cfg.MaxInFlight)
	}

	return d
}

// Dispatch processes raw in the background and returns immediately.
// Failures are logged and never reach the caller. Cancellation of ctx is not propagated to frames
// already dispatched, they run to completion.
func (d *Dispatcher) Dispatch(ctx context.Context, raw []byte) {
	d.metrics.frames.Inc()
	d.wg.Add(1)

	go func() {
		defer d.wg.Done()

		logger := d.logger.With(zap.String("correlation_id", uuid.NewString()))

		defer func() {
			if r := recover(); r != nil {
				d.metrics.failures.WithLabelValues(StagePanic).Inc()
				logger.Errorw("Recovered from panic while processing frame", zap.Any("panic", r), zap.Stack("stack"))
			}
		}()

		ctx := context.WithoutCancel(ctx)

		if d.sem != nil {
			if err := d.sem.Acquire(ctx, 1); err != nil {
				logger.Errorw("Can't acquire processing slot", logging.Error(err))
				return
			}
			defer d.sem.Release(1)
		}

		d.metrics.inFlight.Inc()
		defer d.metrics.inFlight.Dec()

		d.process(ctx, raw, logging.NewLogger(logger))
	}()
}

// Wait blocks until all dispatched frames have been processed.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) process(ctx context.Context, raw []byte, logger *logging.Logger) {
	frame, err := killmail.Decode(raw)
	if err != nil {
		d.fail(logger, StageDecode, err)
		return
	}

	km := frame.Killmail
	logger = logging.NewLogger(logger.With(zap.Int64("kill_id", frame.KillID)))

	if !killmail.IsRelevant(km, d.cfg.Watched, d.cfg.MatchAll) {
		d.metrics.ignored.Inc()
		logger.Debugw("Ignoring kill not involving the watched entity", zap.Stringer("watched", d.cfg.Watched))
		return
	}

	var (
		location *reference.Location
		facts    killmail.Facts
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if location, err = d.resolver.Resolve(gctx, km.SolarSystem.ID); err != nil {
			return stageError{StageResolve, err}
		}

		return nil
	})
	g.Go(func() error {
		var err error
		if facts, err = killmail.Aggregate(km.Attackers); err != nil {
			return stageError{StageAggregate, err}
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		var se stageError
		if errors.As(err, &se) {
			d.fail(logger, se.stage, se.err)
		} else {
			d.fail(logger, StageResolve, err)
		}

		return
	}

	payload := notification.Build(notification.Input{
		Killmail:   km,
		TotalValue: frame.Zkb.TotalValue,
		Facts:      facts,
		Location:   location,
		Watched:    d.cfg.Watched,
	})

	if err := d.publisher.Publish(ctx, payload); err != nil {
		d.fail(logger, StagePublish, err)
		return
	}

	d.metrics.published.Inc()
	logger.Infow("Published kill", zap.String("title", payload.Title))
}

func (d *Dispatcher) fail(logger *logging.Logger, stage string, err error) {
	d.metrics.failures.WithLabelValues(stage).Inc()
	logger.Errorw("Dropping frame", zap.String("stage", stage), logging.Error(err))
}

// stageError tags an error with the pipeline stage it occurred in.
type stageError struct {
	stage string
	err   error
}

func (e stageError) Error() string {
	return fmt.Sprintf("%s: %s", e.stage, e.err)
}

func (e stageError) Unwrap() error {
	return e.err
}
