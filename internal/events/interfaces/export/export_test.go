package export

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	events "statusboard/internal/events/domain"
	"statusboard/internal/observability/metrics"
)

type staticSource struct {
	list []events.Event
	err  error
}

func (s staticSource) Snapshot(context.Context) ([]events.Event, error) {
	return s.list, s.err
}

func sampleEvents() []events.Event {
	return []events.Event{
		events.New("weather.home", "Home", events.LevelOK, events.StringPtr("2024-03-01T10:00:00Z"),
			events.Weather{Temperature: 51, TemperatureUnit: "F", Condition: "Sunny"}),
		events.New("job.api", "API", "", nil, events.Job{Status: events.JobFailure}),
	}
}

func TestBuildSnapshotXLSXSortsByID(t *testing.T) {
	raw, err := BuildSnapshotXLSX(sampleEvents())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, columns, rows[0])
	assert.Equal(t, []string{"job.api", "JOB", "ERROR", "API", "", "FAILURE"}, rows[1])
	assert.Equal(t, []string{"weather.home", "WEATHER", "OK", "Home", "2024-03-01T10:00:00Z", "51F Sunny"}, rows[2])
}

func TestBuildSnapshotPDF(t *testing.T) {
	raw, err := BuildSnapshotPDF(sampleEvents(), time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("%PDF-")))
}

func TestHandlerFormats(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	handler, err := NewHandler(staticSource{list: sampleEvents()}, logger)
	require.NoError(t, err)
	handler.now = func() time.Time { return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC) }
	router := mux.NewRouter()
	handler.Register(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events/export", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, contentTypeXLSX, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="statusboard-20240301-100000.xlsx"`, rec.Header().Get("Content-Disposition"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events/export?format=PDF", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, contentTypePDF, rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events/export?format=csv", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerSnapshotFailure(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	handler, err := NewHandler(staticSource{err: errors.New("redis down")}, logger)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events/export?format=pdf", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	_, err = NewHandler(nil, nil)
	assert.Error(t, err)
}

func TestHandlerInvalidFormatUsesFixedMetricLabel(t *testing.T) {
	metrics.Init(nil, nil)
	logger, _ := logtest.NewNullLogger()
	handler, err := NewHandler(staticSource{list: sampleEvents()}, logger)
	require.NoError(t, err)

	for _, format := range []string{"csv", "zip-a1b2c3", "../../etc"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events/export?format="+format, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	var invalid float64
	for _, family := range families {
		if family.GetName() != "statusboard_export_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			labels := map[string]string{}
			for _, pair := range metric.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			assert.Contains(t, []string{FormatXLSX, FormatPDF, formatOther}, labels["format"])
			if labels["result"] == "invalid" {
				invalid += metric.GetCounter().GetValue()
			}
		}
	}
	assert.GreaterOrEqual(t, invalid, float64(3))
}
