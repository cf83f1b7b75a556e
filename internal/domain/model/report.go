package model

import (
	"encoding/json"
	"fmt"
)

// Report versions understood by the job-update interface. Version 1 carries
// batched finished ranges, version 0 carries failed ranges.
const (
	FinishedReportVersion = 1
	FailedReportVersion   = 0
)

// UpdateRequest is the payload sent to the job-update interface of the
// reporting service. EventRanges holds the nested report JSON-encoded as a
// string, which is the encoding the service expects.
type UpdateRequest struct {
	Version     int    `json:"version"`
	EventRanges string `json:"eventRanges"`
}

// EventRangeUpdate is one finished range entry inside a success batch report.
type EventRangeUpdate struct {
	EventRangeID string `json:"eventRangeID"`
	EventStatus  string `json:"eventStatus"`
	FileLocation string `json:"fileLocation"`
}

// FailedRangeUpdate is one entry inside a failure report.
type FailedRangeUpdate struct {
	ErrorCode    int    `json:"errorCode"`
	EventRangeID string `json:"eventRangeID"`
	EventStatus  string `json:"eventStatus"`
}

// finishedBatch is the envelope around one success batch.
type finishedBatch struct {
	ESOutput    batchOutput        `json:"esOutput"`
	EventRanges []EventRangeUpdate `json:"eventRanges"`
}

type batchOutput struct {
	NumEvents int `json:"numEvents"`
}

// BuildFinishedUpdate builds the version-1 batch report for a set of finished
// outcome messages. The whole batch is one report.
func BuildFinishedUpdate(msgs []OutcomeMessage) (UpdateRequest, error) {
	ranges := make([]EventRangeUpdate, 0, len(msgs))
	for _, m := range msgs {
		ranges = append(ranges, EventRangeUpdate{
			EventRangeID: m.ID,
			EventStatus:  string(RangeStatusFinished),
			FileLocation: m.Output,
		})
	}
	batch := []finishedBatch{{
		ESOutput:    batchOutput{NumEvents: len(ranges)},
		EventRanges: ranges,
	}}
	encoded, err := json.Marshal(batch)
	if err != nil {
		return UpdateRequest{}, fmt.Errorf("encode finished ranges: %w", err)
	}
	return UpdateRequest{Version: FinishedReportVersion, EventRanges: string(encoded)}, nil
}

// BuildFailedUpdate builds the version-0 failure report for a set of failed or
// fatal outcome messages. Statuses outside {failed, fatal} are coerced to
// failed. One report covers the whole batch.
func BuildFailedUpdate(msgs []OutcomeMessage, errorCode int) (UpdateRequest, error) {
	ranges := make([]FailedRangeUpdate, 0, len(msgs))
	for _, m := range msgs {
		status := m.Status
		if status != RangeStatusFailed && status != RangeStatusFatal {
			status = RangeStatusFailed
		}
		ranges = append(ranges, FailedRangeUpdate{
			ErrorCode:    errorCode,
			EventRangeID: m.ID,
			EventStatus:  string(status),
		})
	}
	encoded, err := json.Marshal(ranges)
	if err != nil {
		return UpdateRequest{}, fmt.Errorf("encode failed ranges: %w", err)
	}
	return UpdateRequest{Version: FailedReportVersion, EventRanges: string(encoded)}, nil
}
