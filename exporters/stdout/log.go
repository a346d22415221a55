// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package stdout

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/z5labs/otelsdk"
	"github.com/z5labs/otelsdk/instrumentation"
	sdklog "github.com/z5labs/otelsdk/log"

	"go.opentelemetry.io/otel/log"
)

// LogExporter writes each log record as one JSON value.
type LogExporter struct {
	mu  sync.Mutex
	enc *json.Encoder

	shutdown atomic.Bool
}

var _ sdklog.Exporter = (*LogExporter)(nil)

// NewLogExporter returns a LogExporter writing to os.Stdout unless
// redirected with WithWriter.
func NewLogExporter(opts ...Option) *LogExporter {
	return &LogExporter{enc: newEncoder(opts)}
}

type logRecordView struct {
	Timestamp         time.Time
	ObservedTimestamp time.Time
	Severity          string                `json:",omitempty"`
	SeverityText      string                `json:",omitempty"`
	EventName         string                `json:",omitempty"`
	Body              any                   `json:",omitempty"`
	Attributes        map[string]any        `json:",omitempty"`
	TraceID           string                `json:",omitempty"`
	SpanID            string                `json:",omitempty"`
	Scope             instrumentation.Scope `json:",omitempty"`
}

// Export writes one JSON value per record.
func (e *LogExporter) Export(_ context.Context, records []sdklog.Record) error {
	if e.shutdown.Load() {
		return otelsdk.ErrAlreadyShutdown
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range records {
		r := &records[i]

		view := logRecordView{
			Timestamp:         r.Timestamp(),
			ObservedTimestamp: r.ObservedTimestamp(),
			Severity:          r.Severity().String(),
			SeverityText:      r.SeverityText(),
			EventName:         r.EventName(),
			Body:              logValueAny(r.Body()),
			Scope:             r.InstrumentationScope(),
		}
		if r.AttributesLen() > 0 {
			view.Attributes = make(map[string]any, r.AttributesLen())
			r.WalkAttributes(func(kv log.KeyValue) bool {
				view.Attributes[kv.Key] = logValueAny(kv.Value)
				return true
			})
		}
		if r.TraceID().IsValid() {
			view.TraceID = r.TraceID().String()
		}
		if r.SpanID().IsValid() {
			view.SpanID = r.SpanID().String()
		}

		if err := e.enc.Encode(view); err != nil {
			return err
		}
	}
	return nil
}

func logValueAny(v log.Value) any {
	switch v.Kind() {
	case log.KindBool:
		return v.AsBool()
	case log.KindInt64:
		return v.AsInt64()
	case log.KindFloat64:
		return v.AsFloat64()
	case log.KindString:
		return v.AsString()
	case log.KindBytes:
		return v.AsBytes()
	case log.KindSlice:
		vals := v.AsSlice()
		out := make([]any, len(vals))
		for i, e := range vals {
			out[i] = logValueAny(e)
		}
		return out
	case log.KindMap:
		kvs := v.AsMap()
		out := make(map[string]any, len(kvs))
		for _, kv := range kvs {
			out[kv.Key] = logValueAny(kv.Value)
		}
		return out
	default:
		return nil
	}
}

// ForceFlush is a no-op; every record is written as it is exported.
func (e *LogExporter) ForceFlush(ctx context.Context) error {
	return ctx.Err()
}

// Shutdown stops the exporter. It is idempotent; later calls return
// otelsdk.ErrAlreadyShutdown.
func (e *LogExporter) Shutdown(context.Context) error {
	if !e.shutdown.CompareAndSwap(false, true) {
		return otelsdk.ErrAlreadyShutdown
	}
	return nil
}
