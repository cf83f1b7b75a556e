package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sciforge/rangeagent/internal/domain/model"
)

func TestNewFailureReporterRequiresUpdater(t *testing.T) {
	t.Parallel()

	_, err := NewFailureReporter(FailureReporterOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JobUpdater is required")
}

func TestFailureReporterEmptyBatchIsNoOp(t *testing.T) {
	t.Parallel()

	updater := &fakeUpdater{}
	reporter, err := NewFailureReporter(FailureReporterOptions{Updater: updater, Logger: discardLogger()})
	require.NoError(t, err)

	require.NoError(t, reporter.Report(context.Background(), nil))
	assert.Empty(t, updater.Requests())
}

func TestFailureReporterSendsOneReportPerBatch(t *testing.T) {
	t.Parallel()

	updater := &fakeUpdater{}
	reporter, err := NewFailureReporter(FailureReporterOptions{
		Updater:   updater,
		ErrorCode: 1305,
		Logger:    discardLogger(),
	})
	require.NoError(t, err)

	msgs := []model.OutcomeMessage{
		{ID: "r1", Status: model.RangeStatusFailed},
		{ID: "r2", Status: model.RangeStatusFatal},
	}
	require.NoError(t, reporter.Report(context.Background(), msgs))

	reqs := updater.Requests()
	require.Len(t, reqs, 1, "one batch yields exactly one report")
	assert.Equal(t, model.FailedReportVersion, reqs[0].Version)

	var entries []struct {
		ErrorCode    int    `json:"errorCode"`
		EventRangeID string `json:"eventRangeID"`
		EventStatus  string `json:"eventStatus"`
	}
	require.NoError(t, json.Unmarshal([]byte(reqs[0].EventRanges), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, 1305, entries[0].ErrorCode)
	assert.Equal(t, "r1", entries[0].EventRangeID)
	assert.Equal(t, "failed", entries[0].EventStatus)
	assert.Equal(t, "fatal", entries[1].EventStatus)
}

func TestFailureReporterDefaultsErrorCode(t *testing.T) {
	t.Parallel()

	updater := &fakeUpdater{}
	reporter, err := NewFailureReporter(FailureReporterOptions{Updater: updater, Logger: discardLogger()})
	require.NoError(t, err)

	require.NoError(t, reporter.Report(context.Background(), []model.OutcomeMessage{
		{ID: "r1", Status: model.RangeStatusFailed},
	}))
	reqs := updater.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].EventRanges, `"errorCode":1220`)
}

func TestFailureReporterWrapsTransportError(t *testing.T) {
	t.Parallel()

	updater := &fakeUpdater{failNext: 1, err: errors.New("connection reset")}
	reporter, err := NewFailureReporter(FailureReporterOptions{Updater: updater, Logger: discardLogger()})
	require.NoError(t, err)

	err = reporter.Report(context.Background(), []model.OutcomeMessage{
		{ID: "r1", Status: model.RangeStatusFailed},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "report 1 failed ranges")
	assert.Contains(t, err.Error(), "connection reset")
}
