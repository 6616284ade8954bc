package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/neuroacq/sigstreams/event"
	"github.com/neuroacq/sigstreams/health"
	"github.com/neuroacq/sigstreams/metadata"
)

// healthEvery is how many decoded events pass between health refreshes.
const healthEvery = 1000

// tap prints every decoded event as a structured log line. It is the
// subscriber's event handler.
type tap struct {
	logger  *slog.Logger
	monitor *health.Monitor
	count   atomic.Uint64
}

func newTap(logger *slog.Logger, monitor *health.Monitor) *tap {
	return &tap{logger: logger, monitor: monitor}
}

// Count returns how many events the tap has printed.
func (t *tap) Count() uint64 {
	return t.count.Load()
}

func (t *tap) handle(_ context.Context, subject string, e event.Event) {
	n := t.count.Add(1)
	if t.monitor != nil && (n == 1 || n%healthEvery == 0) {
		t.monitor.UpdateHealthy("tap", fmt.Sprintf("%d events decoded", n))
	}

	switch ev := e.(type) {
	case *event.TTL:
		t.logger.Info("ttl event",
			"subject", subject,
			"channel", ev.Info().Name(),
			"timestamp", ev.Timestamp(),
			"line", ev.Line(),
			"state", ev.State(),
			"word", fmt.Sprintf("%x", ev.Word()),
			"metadata", renderMetadata(ev.Metadata()))
	case *event.Text:
		t.logger.Info("text event",
			"subject", subject,
			"channel", ev.Info().Name(),
			"timestamp", ev.Timestamp(),
			"selector", ev.Selector(),
			"text", ev.Text(),
			"metadata", renderMetadata(ev.Metadata()))
	case *event.Binary:
		t.logger.Info("binary event",
			"subject", subject,
			"channel", ev.Info().Name(),
			"timestamp", ev.Timestamp(),
			"selector", ev.Selector(),
			"kind", ev.Info().Kind().String(),
			"bytes", len(ev.Raw()),
			"metadata", renderMetadata(ev.Metadata()))
	case *event.Spike:
		wf := ev.Waveform()
		samples := 0
		if len(wf) > 0 {
			samples = len(wf[0])
		}
		t.logger.Info("spike event",
			"subject", subject,
			"channel", ev.Info().Name(),
			"timestamp", ev.Timestamp(),
			"unit", ev.Unit(),
			"threshold", ev.Threshold(),
			"channels", len(wf),
			"samples", samples,
			"metadata", renderMetadata(ev.Metadata()))
	case *event.System:
		t.logger.Info("system event",
			"subject", subject,
			"kind", ev.Kind().String(),
			"stage", ev.StageID(),
			"sub_stream", ev.SubStream(),
			"value", systemValue(ev))
	default:
		t.logger.Warn("unknown event kind", "subject", subject, "type", e.Type().String())
	}
}

// systemValue extracts the payload a system event carries, rendered per kind.
func systemValue(ev *event.System) string {
	switch ev.Kind() {
	case event.SystemTimestamp:
		return fmt.Sprintf("%d", ev.Timestamp())
	case event.SystemBufferSize:
		return fmt.Sprintf("%d samples", ev.BufferSize())
	default:
		return fmt.Sprintf("%d bytes", len(ev.Payload()))
	}
}

// renderMetadata formats attached metadata values as identifier=value pairs.
// Char fields print as text, everything else as hex.
func renderMetadata(values []metadata.Value) string {
	if len(values) == 0 {
		return ""
	}

	parts := make([]string, 0, len(values))
	for _, v := range values {
		f := v.Field()
		if f.Kind == metadata.Char {
			if s, err := v.Text(); err == nil {
				parts = append(parts, fmt.Sprintf("%s=%q", f.Identifier, s))
				continue
			}
		}
		parts = append(parts, fmt.Sprintf("%s=0x%x", f.Identifier, v.Bytes()))
	}
	return strings.Join(parts, " ")
}
