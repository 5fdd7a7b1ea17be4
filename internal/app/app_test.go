package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/hireflow/internal/api"
	"github.com/timmy/hireflow/internal/config"
	"github.com/timmy/hireflow/internal/logger"
	"github.com/timmy/hireflow/internal/service"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Mode: "test"},
		Database: config.DatabaseConfig{
			Driver:       "sqlite",
			Path:         "file:" + t.Name() + "?mode=memory&cache=shared",
			MaxIdleConns: 1,
			MaxOpenConns: 1,
			AutoMigrate:  true,
			LogLevel:     "silent",
		},
		AI: config.AIConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
			BaseURL:  "http://127.0.0.1:1",
		},
		Scoring: config.ScoringConfig{DefaultProfile: "standard"},
		Retry:   config.RetryConfig{MaxAttempts: 1, BaseDelay: time.Millisecond},
		Notification: config.NotificationConfig{
			Enabled:        true,
			ScoreThreshold: 75,
			MaxRetries:     3,
		},
		Lease: config.LeaseConfig{Backend: "none", TTL: time.Minute},
	}
}

func TestNew_WiresSettingsThroughRouter(t *testing.T) {
	log := logger.NewDiscard()
	p, err := New(context.Background(), testConfig(t), log)
	require.NoError(t, err)
	defer p.Close()

	r := api.SetupRouter(p.Services(), &p.Config.Server, log)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var got service.RunSettings
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 75, got.Threshold)

	body, _ := json.Marshal(service.RunSettings{Threshold: 90, RecruiterNotifications: true})
	req := httptest.NewRequest(http.MethodPut, "/api/v1/settings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	loaded, err := p.Settings.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 90, loaded.Threshold)
	assert.True(t, loaded.RecruiterNotifications)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNew_UnknownApplication(t *testing.T) {
	p, err := New(context.Background(), testConfig(t), logger.NewDiscard())
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Status.ChangeStatus(context.Background(), "missing", "interview", "test", "")
	assert.ErrorIs(t, err, service.ErrApplicationNotFound)
}
