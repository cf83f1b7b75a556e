// Package metrics provides nil-safe emit helpers for agent metrics.
package metrics

import (
	"time"

	agenterrors "github.com/sciforge/rangeagent/internal/errors"
	"github.com/sciforge/rangeagent/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// EmitOutcome emits one counter per outcome message routed.
func EmitOutcome(sink statsd.Sink, status string) {
	if sink == nil {
		return
	}
	sink.Count("outcome.received", 1, map[string]string{"status": status})
}

// FlushMetric captures details about one stage-out flush attempt.
type FlushMetric struct {
	Ranges   int
	Forced   bool
	Duration time.Duration
	Err      error
}

// EmitFlush emits standardised stage-out flush metrics.
func EmitFlush(sink statsd.Sink, in FlushMetric) {
	if sink == nil {
		return
	}

	result := ResultSuccess
	if in.Err != nil {
		result = ResultError
	} else if in.Ranges == 0 {
		result = ResultNoop
	}

	tags := map[string]string{"result": result}
	if in.Forced {
		tags["forced"] = "true"
	}
	if in.Err != nil {
		tags["error_class"] = string(agenterrors.CodeOf(in.Err))
	}

	sink.Count("stageout.flush", 1, tags)
	if in.Ranges > 0 {
		sink.Count("stageout.ranges", int64(in.Ranges), CloneTags(tags))
	}
	if in.Duration > 0 {
		sink.Timing("stageout.flush_duration", in.Duration, CloneTags(tags))
	}
}

// EmitWorkerExit records the worker process exit code as a counter tag.
func EmitWorkerExit(sink statsd.Sink, code int, clean bool) {
	if sink == nil {
		return
	}
	result := ResultSuccess
	if !clean {
		result = ResultError
	}
	sink.Count("worker.exit", 1, map[string]string{"result": result})
	sink.Gauge("worker.exit_code", float64(code), nil)
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
