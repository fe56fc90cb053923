package events

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJobDerivesLevel(t *testing.T) {
	raw := `{"id":"job.jenkins.api","eventType":"JOB","level":"OK","name":"API","time":"2024-03-01T10:00:00Z","status":"FAILURE","url":"http://ci/job/api/12/"}`

	event, err := Decode([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, TypeJob, event.Type)
	assert.Equal(t, LevelError, event.Level)
	job, ok := event.Payload.(Job)
	require.True(t, ok)
	assert.Equal(t, JobFailure, job.Status)
	require.NotNil(t, job.URL)
	assert.Equal(t, "http://ci/job/api/12/", *job.URL)
}

func TestDecodeHealthDerivesLevel(t *testing.T) {
	cases := map[HealthStatus]Level{
		HealthUp:      LevelOK,
		HealthDown:    LevelError,
		HealthUnknown: LevelUnknown,
	}
	for status, want := range cases {
		raw := `{"id":"health.x","eventType":"HEALTH","name":"X","time":"2024-03-01T10:00:00Z","status":"` + string(status) + `"}`
		event, err := Decode([]byte(raw))
		require.NoError(t, err)
		assert.Equal(t, want, event.Level, "status %s", status)
	}
}

func TestDecodeUnknownDiscriminatorFallsBack(t *testing.T) {
	raw := `{"id":"countdown.launch","eventType":"COUNTDOWN","level":"WARN","name":"Launch","time":"2024-03-01T10:00:00Z","countdownTime":"2024-04-01T00:00:00Z"}`

	event, err := Decode([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, TypeUnknown, event.Type)
	assert.Equal(t, LevelWarn, event.Level)
	assert.Nil(t, event.Payload)
	assert.Equal(t, "Launch", event.Name)
}

func TestDecodeDefaultsLevelToOK(t *testing.T) {
	event, err := Decode([]byte(`{"id":"figure.a","eventType":"FIGURE","name":"A","time":null,"value":"12","subtext":"open"}`))
	require.NoError(t, err)

	assert.Equal(t, LevelOK, event.Level)
	assert.Nil(t, event.Time)
	assert.Equal(t, Figure{Value: "12", Subtext: "open"}, event.Payload)
}

func TestEncodeWritesFlatWireForm(t *testing.T) {
	event := New("list.actionitems.team", "Team", LevelOK, StringPtr("2024-03-01T00:00:00Z"), List{
		Sections: []Section{{Name: "Action Items", Items: []string{"ship it (sam)"}}},
	})

	raw, err := Encode(event)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, "list.actionitems.team", fields["id"])
	assert.Equal(t, "LIST", fields["eventType"])
	assert.Equal(t, "OK", fields["level"])
	assert.Equal(t, "Team", fields["name"])
	assert.Equal(t, "2024-03-01T00:00:00Z", fields["time"])
	sections, ok := fields["sections"].([]any)
	require.True(t, ok)
	assert.Len(t, sections, 1)
}

func TestEncodeDecodePreservesEquality(t *testing.T) {
	original := []Event{
		New("weather.home", "Home", LevelOK, StringPtr("2024-03-01T00:00:00Z"), Weather{Temperature: 51, TemperatureUnit: "F", Condition: "Sunny"}),
		New("statistics.appcenter.app", "app", LevelOK, StringPtr("2024-03-01T00:00:00Z"), Statistics{}),
		New("quote.upwise", "Upwise", LevelUnknown, nil, Quote{Quote: "q", Author: "a"}),
		New("other.thing", "Thing", LevelInfo, nil, nil),
	}
	for _, event := range original {
		raw, err := Encode(event)
		require.NoError(t, err)
		decoded, err := Decode(raw)
		require.NoError(t, err)
		assert.True(t, Equal(event, decoded), "event %s did not survive the wire", event.ID)
	}
}

func TestEqual(t *testing.T) {
	base := New("status.a", "A", LevelOK, StringPtr("2024-03-01T00:00:00Z"), Status{StatusText: "Up"})

	same := New("status.a", "A", LevelOK, StringPtr("2024-03-01T00:00:00Z"), Status{StatusText: "Up"})
	assert.True(t, Equal(base, same))

	changedText := New("status.a", "A", LevelOK, StringPtr("2024-03-01T00:00:00Z"), Status{StatusText: "Down"})
	assert.False(t, Equal(base, changedText))

	changedTime := New("status.a", "A", LevelOK, StringPtr("2024-03-01T00:00:01Z"), Status{StatusText: "Up"})
	assert.False(t, Equal(base, changedTime))

	changedVariant := New("status.a", "A", LevelOK, StringPtr("2024-03-01T00:00:00Z"), Figure{Value: "Up"})
	assert.False(t, Equal(base, changedVariant))
}

func TestValidateJSON(t *testing.T) {
	valid := `{"id":"a","eventType":"STATUS","time":"2024-03-01T00:00:00Z","name":"A"}`
	require.NoError(t, ValidateJSON([]byte(valid)))

	cases := map[string]string{
		"id":        `{"eventType":"STATUS","time":"t","name":"A"}`,
		"eventType": `{"id":"a","time":"t","name":"A"}`,
		"time":      `{"id":"a","eventType":"STATUS","time":null,"name":"A"}`,
		"name":      `{"id":"a","eventType":"STATUS","time":"t","name":""}`,
	}
	for field, raw := range cases {
		err := ValidateJSON([]byte(raw))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrValidation))
		assert.Equal(t, "The field '"+field+"' is required.", err.Error())
	}

	require.NoError(t, ValidateJSON([]byte(`{"id":"a","eventType":"SOMETHING","time":"t","name":"A"}`)))
}

func TestParsedTime(t *testing.T) {
	event := New("a", "A", LevelOK, StringPtr("2024-03-01T10:00:00+02:00"), nil)
	parsed, ok := event.ParsedTime()
	require.True(t, ok)
	assert.Equal(t, int64(1709280000), parsed.Unix())

	_, ok = New("a", "A", LevelOK, nil, nil).ParsedTime()
	assert.False(t, ok)
}
