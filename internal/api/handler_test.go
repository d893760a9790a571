package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/jobrunner/internal/jobs"
)

type fakeEnqueuer struct {
	queue      string
	desc       *jobs.Descriptor
	runAt      time.Time
	enqueueErr error
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, queue string, desc *jobs.Descriptor, runAt time.Time) (string, error) {
	if f.enqueueErr != nil {
		return "", f.enqueueErr
	}
	f.queue = queue
	f.desc = desc
	f.runAt = runAt
	return "job-123", nil
}

func testRouter(store *fakeEnqueuer, healthCheck func(ctx context.Context) error) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return SetupRouter(&Dependencies{
		Logger:      slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
		Store:       store,
		HealthCheck: healthCheck,
	})
}

func TestCreateJob(t *testing.T) {
	store := &fakeEnqueuer{}
	router := testRouter(store, nil)

	body := `{"queue":"mailers","handler":"SendWelcomeEmailJob","args":[{"userId":7}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "job-123", resp["job_id"])
	assert.Equal(t, "mailers", resp["queue"])
	assert.Equal(t, "SendWelcomeEmailJob", resp["handler"])

	require.NotNil(t, store.desc)
	assert.Equal(t, "mailers", store.queue)
	assert.Equal(t, "SendWelcomeEmailJob", store.desc.Handler)
	require.Len(t, store.desc.Args, 1)
	assert.JSONEq(t, `{"userId":7}`, string(store.desc.Args[0]))
	assert.True(t, store.runAt.IsZero())
}

func TestCreateJob_WithRunAt(t *testing.T) {
	store := &fakeEnqueuer{}
	router := testRouter(store, nil)

	runAt := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	body, err := json.Marshal(map[string]interface{}{
		"handler": "SendWelcomeEmailJob",
		"run_at":  runAt,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, store.runAt.Equal(runAt))
}

func TestCreateJob_MissingHandler(t *testing.T) {
	store := &fakeEnqueuer{}
	router := testRouter(store, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewBufferString(`{"queue":"mailers"}`))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, store.desc)
}

func TestCreateJob_StoreError(t *testing.T) {
	store := &fakeEnqueuer{enqueueErr: errors.New("connection lost")}
	router := testRouter(store, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewBufferString(`{"handler":"SendWelcomeEmailJob"}`))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		router := testRouter(&fakeEnqueuer{}, func(ctx context.Context) error { return nil })

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
	})

	t.Run("backing store down", func(t *testing.T) {
		router := testRouter(&fakeEnqueuer{}, func(ctx context.Context) error {
			return errors.New("connection refused")
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("no health check configured", func(t *testing.T) {
		router := testRouter(&fakeEnqueuer{}, nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
