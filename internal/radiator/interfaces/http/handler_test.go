package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statusboard/internal/events/infrastructure/memory"
	radiatorapp "statusboard/internal/radiator/application"
	radiator "statusboard/internal/radiator/domain"
)

func newRouter(t *testing.T) *mux.Router {
	t.Helper()
	service, err := radiatorapp.NewService(memory.NewStore(nil), nil)
	require.NoError(t, err)
	handler, err := NewHandler(service, nil)
	require.NoError(t, err)
	router := mux.NewRouter()
	handler.Register(router)
	return router
}

func TestRadiatorConfigurationRoundTrip(t *testing.T) {
	router := newRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/radiator/configuration", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "expected 404 before configuration")

	body := `{"pages":[{"name":"Main","rows":2,"columns":2,"tiles":[{"row":1,"column":1,"eventId":"job.jenkins.api"}]}]}`
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/radiator/configuration", strings.NewReader(body)))
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/radiator/configuration", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var cfg radiator.Configuration
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	require.Len(t, cfg.Pages, 1)
	require.NotEmpty(t, cfg.Pages[0].Tiles)
	assert.Equal(t, radiator.TileEvent, cfg.Pages[0].Tiles[0].TileType)
}

func TestRadiatorConfigurationRejectsInvalid(t *testing.T) {
	router := newRouter(t)

	for _, body := range []string{`{"pages":[{"rows":1}]}`, `not json`} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/radiator/configuration", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
}
