package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

func TestInc(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	r.Inc(ctx, SpeechFilesCreated, nil, 1)
	r.Inc(ctx, SpeechFilesCreated, nil, 2)
	r.Action(ctx, "describe", "ok")
	r.Action(ctx, "describe", "api")

	require.Equal(t, int64(3), r.Value(SpeechFilesCreated, nil))
	require.Equal(t, int64(1), r.Value(ActionsTotal, map[string]string{"outcome": "ok", "action": "describe"}))
	require.Equal(t, int64(1), r.Value(ActionErrorsTotal, map[string]string{"action": "describe"}))

	require.Equal(t, []string{
		"assist_action_errors_total{action=describe} 1",
		"assist_actions_total{action=describe,outcome=api} 1",
		"assist_actions_total{action=describe,outcome=ok} 1",
		"speech_files_created_total 3",
	}, r.SnapshotLines())
}

func TestNilRegistry(t *testing.T) {
	var r *Registry
	r.Inc(context.Background(), SessionsCreated, nil, 1)
	require.Zero(t, r.Value(SessionsCreated, nil))
	require.Empty(t, r.SnapshotJSON())
}

func TestEchoHandlers(t *testing.T) {
	r := NewRegistry()
	r.Inc(context.Background(), SessionsCreated, nil, 4)
	e := echo.New()

	rec := httptest.NewRecorder()
	require.NoError(t, r.EchoHandlerText(e.NewContext(httptest.NewRequest(http.MethodGet, "/metrics", nil), rec)))
	require.Equal(t, "sessions_created_total 4\n", rec.Body.String())

	rec = httptest.NewRecorder()
	require.NoError(t, r.EchoHandlerJSON(e.NewContext(httptest.NewRequest(http.MethodGet, "/metrics.json", nil), rec)))
	var payload map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, int64(4), payload[SessionsCreated])
}
