package producers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	events "statusboard/internal/events/domain"
)

func TestSonarQubeWebhook(t *testing.T) {
	publisher := &recordingPublisher{}
	handler, err := NewSonarQubeHandler(publisher, nil)
	require.NoError(t, err)
	router := mux.NewRouter()
	handler.Register(router)

	cases := []struct {
		status string
		level  events.Level
		text   string
	}{
		{"OK", events.LevelOK, "Passed"},
		{"ERROR", events.LevelError, "Failed"},
		{"WARN", events.LevelUnknown, "Unknown"},
	}
	for _, tc := range cases {
		body := `{"analysedAt":"2016-11-18T10:46:28+0100","project":{"key":"org.sample:app","name":"Sample"},"qualityGate":{"status":"` + tc.status + `"}}`
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sonarqube/webhook", strings.NewReader(body)))
		require.Equal(t, http.StatusOK, rec.Code, tc.status)

		published := publisher.Events()
		event := published[len(published)-1]
		assert.Equal(t, "status.sonarqube.org.sample:app", event.ID)
		assert.Equal(t, "Sample", event.Name)
		assert.Equal(t, tc.level, event.Level)
		assert.Equal(t, events.Status{StatusText: tc.text}, event.Payload)
		assert.Equal(t, "2016-11-18T10:46:28+01:00", *event.Time)
	}
}

func TestSonarQubeWebhookRejectsBadPayload(t *testing.T) {
	publisher := &recordingPublisher{}
	handler, err := NewSonarQubeHandler(publisher, nil)
	require.NoError(t, err)

	for _, body := range []string{
		`not json`,
		`{"analysedAt":"2016-11-18T10:46:28+01:00","project":{"name":"x"},"qualityGate":{"status":"OK"}}`,
		`{"analysedAt":"yesterday","project":{"key":"k"},"qualityGate":{"status":"OK"}}`,
	} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sonarqube/webhook", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Empty(t, publisher.Events())

	failing, err := NewSonarQubeHandler(&recordingPublisher{err: errPublish}, nil)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	failing.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sonarqube/webhook",
		strings.NewReader(`{"analysedAt":"2016-11-18T10:46:28+01:00","project":{"key":"k"},"qualityGate":{"status":"OK"}}`)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
