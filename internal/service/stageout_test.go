package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sciforge/rangeagent/internal/domain/model"
	agenterrors "github.com/sciforge/rangeagent/internal/errors"
)

// manualClock makes the throttle deterministic.
type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time          { return c.now }
func (c *manualClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestStageOut(updater *fakeUpdater, gap time.Duration) (*StageOutScheduler, *pendingQueue, *manualClock) {
	pending := &pendingQueue{}
	clock := &manualClock{now: time.Unix(1_700_000_000, 0)}
	s := &StageOutScheduler{
		pending: pending,
		updater: updater,
		jobs:    staticJobs{job: model.NewJob("job-1", gap)},
		logger:  discardLogger(),
		now:     clock.Now,
	}
	return s, pending, clock
}

func finishedMsg(id string) model.OutcomeMessage {
	return model.OutcomeMessage{
		ID:     id,
		Status: model.RangeStatusFinished,
		Output: "/tmp/" + id + ".out",
	}
}

func TestStageOutEmptyQueueIsNoOp(t *testing.T) {
	t.Parallel()

	updater := &fakeUpdater{}
	s, _, _ := newTestStageOut(updater, time.Minute)

	require.NoError(t, s.MaybeFlush(context.Background(), false))
	require.NoError(t, s.MaybeFlush(context.Background(), true))
	assert.Empty(t, updater.Requests(), "empty queue must never produce a report")
}

func TestStageOutFirstFlushIsImmediate(t *testing.T) {
	t.Parallel()

	updater := &fakeUpdater{}
	s, pending, _ := newTestStageOut(updater, time.Hour)

	pending.Push(finishedMsg("r1"))
	pending.Push(finishedMsg("r2"))
	require.NoError(t, s.MaybeFlush(context.Background(), false))

	reqs := updater.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, model.FinishedReportVersion, reqs[0].Version)

	var batches []struct {
		ESOutput struct {
			NumEvents int `json:"numEvents"`
		} `json:"esOutput"`
		EventRanges []struct {
			EventRangeID string `json:"eventRangeID"`
			EventStatus  string `json:"eventStatus"`
			FileLocation string `json:"fileLocation"`
		} `json:"eventRanges"`
	}
	require.NoError(t, json.Unmarshal([]byte(reqs[0].EventRanges), &batches))
	require.Len(t, batches, 1)
	assert.Equal(t, 2, batches[0].ESOutput.NumEvents)
	require.Len(t, batches[0].EventRanges, 2)
	assert.Equal(t, "r1", batches[0].EventRanges[0].EventRangeID)
	assert.Equal(t, "finished", batches[0].EventRanges[0].EventStatus)
	assert.Equal(t, "/tmp/r1.out", batches[0].EventRanges[0].FileLocation)
}

func TestStageOutThrottleHoldsUntilGapElapses(t *testing.T) {
	t.Parallel()

	updater := &fakeUpdater{}
	s, pending, clock := newTestStageOut(updater, 30*time.Second)

	pending.Push(finishedMsg("r1"))
	require.NoError(t, s.MaybeFlush(context.Background(), false))
	require.Len(t, updater.Requests(), 1)

	pending.Push(finishedMsg("r2"))
	clock.Advance(10 * time.Second)
	require.NoError(t, s.MaybeFlush(context.Background(), false))
	assert.Len(t, updater.Requests(), 1, "flush inside the minimum gap must be deferred")
	assert.Equal(t, 1, pending.Len())

	clock.Advance(21 * time.Second)
	require.NoError(t, s.MaybeFlush(context.Background(), false))
	assert.Len(t, updater.Requests(), 2, "flush after the gap elapses goes through")
}

func TestStageOutForcedFlushIgnoresThrottle(t *testing.T) {
	t.Parallel()

	updater := &fakeUpdater{}
	s, pending, _ := newTestStageOut(updater, time.Hour)

	pending.Push(finishedMsg("r1"))
	require.NoError(t, s.MaybeFlush(context.Background(), false))

	pending.Push(finishedMsg("r2"))
	require.NoError(t, s.MaybeFlush(context.Background(), true))
	assert.Len(t, updater.Requests(), 2)
	assert.Zero(t, pending.Len())
}

func TestStageOutFailureRequeuesAndKeepsThrottleOpen(t *testing.T) {
	t.Parallel()

	updater := &fakeUpdater{failNext: 1, err: errors.New("gateway timeout")}
	s, pending, _ := newTestStageOut(updater, time.Hour)

	pending.Push(finishedMsg("r1"))
	pending.Push(finishedMsg("r2"))

	err := s.MaybeFlush(context.Background(), false)
	require.Error(t, err)
	assert.True(t, agenterrors.IsCode(err, agenterrors.ErrCodeStageOutTransmission))
	assert.Equal(t, 2, pending.Len(), "failed batch returns to the queue")

	// The failed attempt must not arm the throttle, so the retry is
	// immediate rather than deferred a full gap.
	require.NoError(t, s.MaybeFlush(context.Background(), false))
	reqs := updater.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].EventRanges, `"eventRangeID":"r1"`)
	assert.Contains(t, reqs[0].EventRanges, `"eventRangeID":"r2"`)
	assert.Zero(t, pending.Len())
}

func TestStageOutAccumulatesJobEvents(t *testing.T) {
	t.Parallel()

	updater := &fakeUpdater{}
	job := model.NewJob("job-1", 0)
	pending := &pendingQueue{}
	clock := &manualClock{now: time.Unix(1_700_000_000, 0)}
	s := &StageOutScheduler{
		pending: pending,
		updater: updater,
		jobs:    staticJobs{job: job},
		logger:  discardLogger(),
		now:     clock.Now,
	}

	pending.Push(finishedMsg("r1"))
	pending.Push(finishedMsg("r2"))
	require.NoError(t, s.MaybeFlush(context.Background(), false))

	pending.Push(finishedMsg("r3"))
	clock.Advance(time.Second)
	require.NoError(t, s.MaybeFlush(context.Background(), false))

	assert.Equal(t, 3, job.NEvents())
}
