package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextFieldsPropagate(t *testing.T) {
	var buf bytes.Buffer
	base := New(&Config{Level: "debug", Format: "json", Output: &buf, ServiceName: "hireflow-test"})

	ctx := base.WithContext(context.Background())
	ctx = SetApplicationID(ctx, "app-1")
	ctx = SetBatchID(ctx, "batch-9")

	CtxInfo(ctx, "analysis started for %s", "app-1")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "app-1", line[FieldApplicationID])
	assert.Equal(t, "batch-9", line[FieldBatchID])
	assert.Equal(t, "hireflow-test", line["service"])
	assert.Equal(t, "analysis started for app-1", line["message"])

	assert.Equal(t, "app-1", GetApplicationID(ctx))
	assert.Equal(t, "batch-9", GetBatchID(ctx))
	assert.Empty(t, GetRequestID(ctx))
}

func TestEntryAddsMetricFields(t *testing.T) {
	var buf bytes.Buffer
	base := New(&Config{Level: "info", Format: "json", Output: &buf})
	ctx := base.WithContext(context.Background())

	With(Fields{FieldCount: 3}).WithAttempt(2).WithStatus("rate_limited").Warn(ctx, "retrying")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.EqualValues(t, 3, line[FieldCount])
	assert.EqualValues(t, 2, line[FieldAttempt])
	assert.Equal(t, "rate_limited", line[FieldStatus])
	assert.Equal(t, "warning", line["level"])
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	assert.Same(t, GetDefault(), FromContext(context.Background()))
}
