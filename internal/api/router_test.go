package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estatelink/marketplace/internal/api"
	"estatelink/marketplace/internal/config"
	"estatelink/marketplace/internal/email"
	"estatelink/marketplace/internal/tasks"
	"estatelink/marketplace/internal/utils"
)

type fakeRunner struct {
	ran []string
	err error
}

func (f *fakeRunner) RunNow(ctx context.Context, taskType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.ran = append(f.ran, taskType)
	return "task-1", nil
}

func serviceCall(t *testing.T, r http.Handler, method string, args interface{}) (int, map[string]interface{}) {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{"method": method, "arguments": args})
	require.NoError(t, err)
	req, _ := http.NewRequest(http.MethodPost, "/api", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestServiceRouter_Shutdown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	shutdown := make(chan struct{}, 1)
	r := api.SetupServiceRouter(&config.Config{}, nil, &fakeRunner{}, shutdown)

	code, body := serviceCall(t, r, "shutdown", nil)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	select {
	case <-shutdown:
	default:
		t.Fatal("shutdown was not signalled")
	}
}

func TestServiceRouter_RunSweeps(t *testing.T) {
	gin.SetMode(gin.TestMode)
	runner := &fakeRunner{}
	r := api.SetupServiceRouter(&config.Config{}, nil, runner, make(chan struct{}, 1))

	code, _ := serviceCall(t, r, "runReconcile", nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = serviceCall(t, r, "runAutoComplete", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{tasks.TypeDocumentReconcile, tasks.TypeAutoComplete}, runner.ran)

	runner.err = errors.New("redis down")
	code, body := serviceCall(t, r, "runReconcile", nil)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, false, body["success"])
}

func TestServiceRouter_UnknownAndDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := api.SetupServiceRouter(&config.Config{MockServices: false}, nil, &fakeRunner{}, make(chan struct{}, 1))

	code, _ := serviceCall(t, r, "dropDatabase", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, body := serviceCall(t, r, "getTestEmail", []string{"consultation_scheduled", "a@example.com"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["error"], "MOCK_SERVICES")
}

func TestServiceRouter_GetTestEmail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rdb := utils.SetupTestRedis(t)
	cfg := &config.Config{MockServices: true, SmtpFromAddress: "noreply@example.com"}
	r := api.SetupServiceRouter(cfg, rdb, &fakeRunner{}, make(chan struct{}, 1))

	addr := "buyer-" + time.Now().Format("150405.000000") + "@example.com"
	raw := email.Compose(cfg.SmtpFromAddress, []string{addr}, "Scheduled", "consultation_scheduled", "See you then", time.Now())
	require.NoError(t, email.NewRedisSender(rdb, cfg).Send(context.Background(), []string{addr}, "Scheduled", raw))

	code, body := serviceCall(t, r, "getTestEmail", []string{"consultation_scheduled", addr})
	require.Equal(t, http.StatusOK, code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "Scheduled", data["subject"])
	assert.Equal(t, "consultation_scheduled", data["event"])

	// Fetching deletes the stored mail.
	exists, err := rdb.Exists(context.Background(), email.MockEmailKey(addr, "consultation_scheduled")).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}
