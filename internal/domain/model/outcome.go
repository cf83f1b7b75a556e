package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingRangeID is returned when an outcome message carries no range id.
var ErrMissingRangeID = errors.New("outcome message missing event range id")

// OutcomeMessage is the parsed asynchronous notification from the worker
// process about one event range's terminal status.
//
// For finished ranges Output holds the local path of the produced artifact.
// Raw retains the original message text for audit bookkeeping.
type OutcomeMessage struct {
	ID     string      `json:"id"`
	Status RangeStatus `json:"status"`
	Output string      `json:"output,omitempty"`
	CPU    float64     `json:"cpu,omitempty"`
	Wall   float64     `json:"wall,omitempty"`
	Raw    string      `json:"message,omitempty"`
}

// Finished reports whether the message describes a successful range.
func (m OutcomeMessage) Finished() bool {
	return m.Status == RangeStatusFinished
}

// Failed reports whether the message describes a failed or fatal range.
func (m OutcomeMessage) Failed() bool {
	return m.Status == RangeStatusFailed || m.Status == RangeStatusFatal
}

// ParseOutcome decodes a single outcome notification from the worker's
// notification stream. Malformed messages are a per-range failure: callers
// log and drop them without aborting the run.
func ParseOutcome(data []byte) (OutcomeMessage, error) {
	var msg OutcomeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return OutcomeMessage{}, fmt.Errorf("decode outcome message: %w", err)
	}
	if msg.ID == "" {
		return OutcomeMessage{}, ErrMissingRangeID
	}
	if !msg.Status.Terminal() {
		return OutcomeMessage{}, fmt.Errorf("non-terminal outcome status %q for range %s", msg.Status, msg.ID)
	}
	if msg.Raw == "" {
		msg.Raw = string(data)
	}
	return msg, nil
}
