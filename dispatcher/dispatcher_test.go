package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Brotsalat/zkill-ws-slack/killmail"
	"github.com/Brotsalat/zkill-ws-slack/notification"
	"github.com/Brotsalat/zkill-ws-slack/reference"
	"github.com/Brotsalat/zkill-ws-slack/testutils"
	"github.com/Brotsalat/zkill-ws-slack/webhook"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const frameTemplate = `{
  "killID": %[1]d,
  "killmail": {
    "killID": %[1]d,
    "killTime": "2016.08.21 17:46:44",
    "solarSystem": {"id": 30002187, "name": "Amarr"},
    "victim": {
      "character": {"id": 95465499, "name": "Victim Pilot"},
      "corporation": {"id": 98000001, "name": "Victim Corp"},
      "alliance": {"id": 99000001, "name": "Victim Alliance"},
      "shipType": {"id": 587, "name": "Rifter"},
      "damageTaken": 1312
    },
    "attackers": [%[2]s]
  },
  "zkb": {"totalValue": 12345678.9}
}`

const hunter = `{
  "character": {"id": 90000002, "name": "Hunter One"},
  "corporation": {"id": 98000002, "name": "Hunter Corp"},
  "shipType": {"id": 17703, "name": "Imperial Navy Slicer"},
  "damageDone": 1312,
  "finalBlow": true
}`

func frame(killID int64, attackers string) []byte {
	return []byte(fmt.Sprintf(frameTemplate, killID, attackers))
}

var victimAlliance = killmail.EntityRef{ID: 99000001, Kind: killmail.KindAlliance}

type fakeResolver struct {
	err   error
	calls atomic.Int32
}

func (r *fakeResolver) Resolve(_ context.Context, systemID int64) (*reference.Location, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}

	return &reference.Location{
		System:        reference.System{ID: systemID, Name: "Amarr", SecurityStatus: 1},
		Constellation: reference.Constellation{ID: 20000322, Name: "Throne Worlds"},
		Region:        reference.Region{ID: 10000043, Name: "Domain"},
	}, nil
}

type fakePublisher struct {
	err     error
	panic   bool
	release chan struct{}

	mu       sync.Mutex
	payloads []notification.Payload

	active, maxActive atomic.Int32
}

func (p *fakePublisher) Publish(ctx context.Context, payload notification.Payload) error {
	n := p.active.Add(1)
	defer p.active.Add(-1)
	for {
		m := p.maxActive.Load()
		if n <= m || p.maxActive.CompareAndSwap(m, n) {
			break
		}
	}

	if p.release != nil {
		<-p.release
	}

	if p.panic {
		panic("webhook exploded")
	}

	if p.err != nil {
		return p.err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)

	return nil
}

func (p *fakePublisher) published() []notification.Payload {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]notification.Payload(nil), p.payloads...)
}

type fixture struct {
	dispatcher *Dispatcher
	resolver   *fakeResolver
	publisher  *fakePublisher
	metrics    *Metrics
	logs       *observer.ObservedLogs
}

func newFixture(cfg Config, resolver *fakeResolver, publisher *fakePublisher) fixture {
	logger, logs := testutils.NewObservedLogger(zapcore.DebugLevel)
	metrics := NewMetrics(prometheus.NewRegistry())

	return fixture{
		dispatcher: New(cfg, resolver, publisher, metrics, logger),
		resolver:   resolver,
		publisher:  publisher,
		metrics:    metrics,
		logs:       logs,
	}
}

func (f fixture) failures(stage string) float64 {
	return testutil.ToFloat64(f.metrics.failures.WithLabelValues(stage))
}

func TestDispatcher_Publishes(t *testing.T) {
	f := newFixture(Config{Watched: victimAlliance}, &fakeResolver{}, &fakePublisher{})

	f.dispatcher.Dispatch(context.Background(), frame(56473366, hunter))
	f.dispatcher.Wait()

	published := f.publisher.published()
	require.Len(t, published, 1)
	require.Equal(t, notification.Danger, published[0].Color)
	require.Equal(t, "Victim Pilot was killed by Hunter One (2016.08.21 17:46:44)", published[0].Title)
	require.Equal(t, "https://zkillboard.com/kill/56473366/", published[0].Link)

	require.Equal(t, int32(1), f.resolver.calls.Load())
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.frames))
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.published))
	require.Equal(t, float64(0), testutil.ToFloat64(f.metrics.inFlight))

	entries := f.logs.FilterMessage("Published kill").All()
	require.Len(t, entries, 1)
	require.Equal(t, int64(56473366), entries[0].ContextMap()["kill_id"])
	require.NotEmpty(t, entries[0].ContextMap()["correlation_id"])
}

func TestDispatcher_Relevance(t *testing.T) {
	outsider := killmail.EntityRef{ID: 1, Kind: killmail.KindCorporation}

	t.Run("ignored", func(t *testing.T) {
		f := newFixture(Config{Watched: outsider}, &fakeResolver{}, &fakePublisher{})

		f.dispatcher.Dispatch(context.Background(), frame(1, hunter))
		f.dispatcher.Wait()

		require.Empty(t, f.publisher.published())
		require.Zero(t, f.resolver.calls.Load())
		require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.ignored))
	})

	t.Run("match all", func(t *testing.T) {
		f := newFixture(Config{Watched: outsider, MatchAll: true}, &fakeResolver{}, &fakePublisher{})

		f.dispatcher.Dispatch(context.Background(), frame(1, hunter))
		f.dispatcher.Wait()

		published := f.publisher.published()
		require.Len(t, published, 1)
		require.Equal(t, notification.Good, published[0].Color)
	})
}

func TestDispatcher_Failures(t *testing.T) {
	lookupErr := &reference.LookupError{Resource: reference.SolarSystems, Ref: "30002187", Err: errors.New("HTTP 503")}
	deliveryErr := &webhook.DeliveryError{StatusCode: 500, Body: "oops", Err: errors.New("unexpected response status")}

	for _, tc := range []struct {
		name      string
		raw       []byte
		resolver  *fakeResolver
		publisher *fakePublisher
		stage     string
		// failures counts both frames where the fake fails every call.
		failures float64
	}{
		{"decode", []byte(`{"killmail":`), &fakeResolver{}, &fakePublisher{}, StageDecode, 1},
		{"no killmail", []byte(`{"zkb":{}}`), &fakeResolver{}, &fakePublisher{}, StageDecode, 1},
		{"resolve", frame(2, hunter), &fakeResolver{err: lookupErr}, &fakePublisher{}, StageResolve, 2},
		{"no attackers", frame(3, ""), &fakeResolver{}, &fakePublisher{}, StageAggregate, 1},
		{"publish", frame(4, hunter), &fakeResolver{}, &fakePublisher{err: deliveryErr}, StagePublish, 2},
		{"panic", frame(5, hunter), &fakeResolver{}, &fakePublisher{panic: true}, StagePanic, 2},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(Config{Watched: victimAlliance}, tc.resolver, tc.publisher)

			f.dispatcher.Dispatch(context.Background(), tc.raw)
			// The dispatcher keeps working after a failure.
			f.dispatcher.Dispatch(context.Background(), frame(100, hunter))
			f.dispatcher.Wait()

			require.Equal(t, tc.failures, f.failures(tc.stage))
			require.Equal(t, 2-tc.failures, testutil.ToFloat64(f.metrics.published))
			require.Equal(t, float64(2), testutil.ToFloat64(f.metrics.frames))
			require.Equal(t, float64(0), testutil.ToFloat64(f.metrics.inFlight))
			require.NotZero(t, f.logs.FilterLevelExact(zapcore.ErrorLevel).Len())
		})
	}
}

func TestDispatcher_DispatchDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	f := newFixture(Config{Watched: victimAlliance}, &fakeResolver{}, &fakePublisher{release: release})

	ctx, cancel := context.WithCancel(context.Background())
	for i := int64(1); i <= 5; i++ {
		f.dispatcher.Dispatch(ctx, frame(i, hunter))
	}

	require.Eventually(t, func() bool { return f.publisher.active.Load() == 5 }, time.Second, time.Millisecond)
	require.Empty(t, f.publisher.published())

	// Frames already dispatched outlive the receive loop.
	cancel()
	close(release)
	f.dispatcher.Wait()

	require.Len(t, f.publisher.published(), 5)
}

func TestDispatcher_MaxInFlight(t *testing.T) {
	release := make(chan struct{})
	f := newFixture(Config{Watched: victimAlliance, MaxInFlight: 2}, &fakeResolver{}, &fakePublisher{release: release})

	for i := int64(1); i <= 6; i++ {
		f.dispatcher.Dispatch(context.Background(), frame(i, hunter))
	}

	require.Eventually(t, func() bool { return f.publisher.active.Load() == 2 }, time.Second, time.Millisecond)
	require.Equal(t, float64(2), testutil.ToFloat64(f.metrics.inFlight))

	close(release)
	f.dispatcher.Wait()

	require.Len(t, f.publisher.published(), 6)
	require.Equal(t, int32(2), f.publisher.maxActive.Load())
}
