package metrics

import (
	"maps"
	"time"

	obserrors "github.com/gagyekum/residency/internal/observability/errors"
	"github.com/gagyekum/residency/internal/observability/statsd"
)

// Values for the result tag shared by every dispatch metric.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// DeliveryMetric captures a single recipient delivery attempt.
type DeliveryMetric struct {
	Channel string
	Result  string
	Err     error
}

// EmitDelivery emits the per-recipient dispatch counter.
func EmitDelivery(sink statsd.Sink, in DeliveryMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{"channel": in.Channel, "result": in.Result}
	tagErrorClass(tags, in.Result, in.Err)
	sink.Count("dispatch.recipient", 1, tags)
}

// BatchMetric captures one dispatched batch for a channel.
type BatchMetric struct {
	Channel  string
	Size     int
	Duration time.Duration
}

// EmitBatch emits size and duration for one dispatch round.
func EmitBatch(sink statsd.Sink, in BatchMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{"channel": in.Channel}
	sink.Count("dispatch.batch_size", int64(in.Size), tags)
	if in.Duration > 0 {
		sink.Timing("dispatch.batch_duration", in.Duration, CloneTags(tags))
	}
}

// JobMetric captures a message job lifecycle transition for metric emission.
type JobMetric struct {
	Transition string
	Result     string
	Duration   time.Duration
	Err        error
}

// EmitJobLifecycle emits the job transition counter and, for timed
// transitions, the job duration.
func EmitJobLifecycle(sink statsd.Sink, in JobMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{"transition": in.Transition, "result": in.Result}
	tagErrorClass(tags, in.Result, in.Err)
	sink.Count("dispatch.job", 1, tags)
	if in.Duration > 0 {
		sink.Timing("dispatch.job_duration", in.Duration, CloneTags(tags))
	}
}

// tagErrorClass adds the classified error type to failed results so failure
// counters can be split by cause.
func tagErrorClass(tags map[string]string, result string, err error) {
	if result != ResultError || err == nil {
		return
	}
	if class := obserrors.Classify(err); class != "" {
		tags["error_class"] = class
	}
}

// CloneTags shallow-copies a tag map so emitters can reuse base tags across
// several metrics without sharing the map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	return maps.Clone(src)
}
