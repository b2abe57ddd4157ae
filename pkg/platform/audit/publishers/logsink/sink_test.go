package logsink

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "rentgate/pkg/platform/audit"
)

func TestSink_Append(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := sink.Append(context.Background(), audit.Event{
		Category:  audit.CategoryOperations,
		Action:    string(audit.EventLogout),
		SessionID: "sess-9",
	})
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "logout", line["msg"])
	assert.Equal(t, "audit", line["log_type"])
	assert.Equal(t, "sess-9", line["session_id"])
}
