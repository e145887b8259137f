// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-triage/pkg/types"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"DEBUG":   zerolog.DebugLevel,
		"":        zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), "level %q", in)
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(types.LoggingConfig{Level: "warn", Format: "json"}, &buf)

	log.Info().Msg("hidden")
	rec := WithRecord(log, "2401.00001", 2)
	rec.Warn().Msg("retrying")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "retrying", entry["message"])
	assert.Equal(t, "2401.00001", entry["paper_id"])
	assert.Equal(t, float64(2), entry["attempt"])
	assert.Contains(t, entry, "time")
}

func TestNewLogger_Console(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(types.LoggingConfig{Level: "info", Format: "console"}, &buf)
	run := WithRun(log, "run-1")
	run.Info().Msg("starting")
	assert.Contains(t, buf.String(), "starting")
	assert.Contains(t, buf.String(), "run-1")
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.AttemptStarted()
	m.AttemptStarted()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.InFlight))

	m.AttemptFinished("success", 2*time.Second)
	m.AttemptFinished("timeout", 300*time.Second)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.InFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Attempts.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Attempts.WithLabelValues("timeout")))

	m.Retried()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Retries))

	m.Outcome("INCLUDE")
	m.Outcome("failed")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Outcomes.WithLabelValues("failed")))

	m.CheckpointFlushed(nil)
	m.CheckpointFlushed(errors.New("disk full"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CheckpointFlushes.WithLabelValues("error")))

	m.Skipped(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RecordsSkipped))

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Positive(t, count)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.AttemptStarted()
		m.AttemptFinished("success", time.Second)
		m.Retried()
		m.Outcome("failed")
		m.CheckpointFlushed(nil)
		m.Skipped(1)
	})
}
