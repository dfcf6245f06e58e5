package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"meetly/pkg/logger"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context, *readpref.ReadPref) error {
	return s.err
}

func serve(t *testing.T, h *Handler, path string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	router := httprouter.New()
	h.RegisterRoutes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestHealth(t *testing.T) {
	rec, resp := serve(t, NewHandler(stubPinger{err: errors.New("down")}, logger.Discard()), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", resp.Status)
}

func TestReady(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		checkErr   error
		wantStatus int
		wantDB     string
		wantDep    string
	}{
		{name: "all healthy", wantStatus: http.StatusOK, wantDB: "ok", wantDep: "ok"},
		{name: "database down", pingErr: errors.New("no primary"), wantStatus: http.StatusServiceUnavailable, wantDB: "error", wantDep: "ok"},
		{name: "broker down", checkErr: errors.New("dial tcp"), wantStatus: http.StatusServiceUnavailable, wantDB: "ok", wantDep: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(stubPinger{err: tt.pingErr}, logger.Discard())
			h.AddCheck("kafka", func(context.Context) error { return tt.checkErr })

			rec, resp := serve(t, h, "/ready")
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantDB, resp.Database)
			assert.Equal(t, tt.wantDep, resp.Dependencies["kafka"])
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "ready", resp.Status)
			} else {
				assert.Equal(t, "unavailable", resp.Status)
			}
		})
	}
}
