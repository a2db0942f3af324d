// Package telemetry emits operation telemetry as structured log events.
package telemetry

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"training_server/core/port/out"
	"training_server/pkg/logger"
	"training_server/pkg/metrics"
)

// LogSink implements out.TelemetrySink on top of the application logger.
type LogSink struct {
	log     *logger.Logger
	latency *metrics.LatencyRegistry
}

func NewLogSink(log *logger.Logger) *LogSink {
	if log == nil {
		log = logger.Default()
	}
	return &LogSink{log: log.WithField("component", "telemetry")}
}

// WithLatency also feeds duration_ms into reg, keyed by event name and route.
func (s *LogSink) WithLatency(reg *metrics.LatencyRegistry) *LogSink {
	s.latency = reg
	return s
}

func (s *LogSink) TrackEvent(ctx context.Context, name string, props map[string]string, measures map[string]float64) {
	zl := s.log.WithContext(ctx).Zerolog()
	ev := zl.Info().Str("telemetry_event", name)
	if len(props) > 0 {
		ev = ev.Dict("props", stringDict(props))
	}
	if len(measures) > 0 {
		ev = ev.Dict("metrics", floatDict(measures))
	}
	ev.Msg("telemetry")

	if s.latency != nil {
		if ms, ok := measures["duration_ms"]; ok {
			key := name
			if route := props["route"]; route != "" {
				key += "." + route
			}
			s.latency.Record(key, time.Duration(ms*float64(time.Millisecond)))
		}
	}
}

// stringDict writes keys in sorted order.
func stringDict(m map[string]string) *zerolog.Event {
	d := zerolog.Dict()
	for _, k := range sortedKeys(m) {
		d.Str(k, m[k])
	}
	return d
}

func floatDict(m map[string]float64) *zerolog.Event {
	d := zerolog.Dict()
	for _, k := range sortedKeys(m) {
		d.Float64(k, m[k])
	}
	return d
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var _ out.TelemetrySink = (*LogSink)(nil)
