package events

import (
	"strings"
	"time"
)

// Type is the event discriminator carried on the wire as "eventType".
type Type string

const (
	TypeStatus     Type = "STATUS"
	TypeHealth     Type = "HEALTH"
	TypeJob        Type = "JOB"
	TypeFigure     Type = "FIGURE"
	TypeQuote      Type = "QUOTE"
	TypePercentage Type = "PERCENTAGE"
	TypeStatistics Type = "STATISTICS"
	TypeWeather    Type = "WEATHER"
	TypeList       Type = "LIST"
	TypeImage      Type = "IMAGE"
	TypeUnknown    Type = "UNKNOWN"
)

// KnownTypes lists every concrete discriminator in wire order.
var KnownTypes = []Type{
	TypeStatus, TypeHealth, TypeJob, TypeFigure, TypeQuote,
	TypePercentage, TypeStatistics, TypeWeather, TypeList, TypeImage,
}

// ParseType maps a wire discriminator to a known type. Unrecognized values yield TypeUnknown.
func ParseType(value string) Type {
	t := Type(strings.ToUpper(strings.TrimSpace(value)))
	for _, known := range KnownTypes {
		if t == known {
			return t
		}
	}
	return TypeUnknown
}

// Level is the event severity.
type Level string

const (
	LevelOK       Level = "OK"
	LevelWarn     Level = "WARN"
	LevelError    Level = "ERROR"
	LevelInfo     Level = "INFO"
	LevelDisabled Level = "DISABLED"
	LevelUnknown  Level = "UNKNOWN"
)

// IsBad reports whether the level warrants an alert.
func (l Level) IsBad() bool {
	return l == LevelWarn || l == LevelError
}

func parseLevel(value string) Level {
	switch l := Level(strings.ToUpper(strings.TrimSpace(value))); l {
	case LevelOK, LevelWarn, LevelError, LevelInfo, LevelDisabled, LevelUnknown:
		return l
	case "":
		return LevelOK
	default:
		return LevelUnknown
	}
}

// Event is the latest known state of one identifier.
type Event struct {
	ID    string
	Type  Type
	Level Level
	Name  string
	// Time is an ISO-8601 timestamp; nil when the producer could not determine one.
	Time    *string
	Payload Payload
}

// Payload is implemented by every variant body.
type Payload interface {
	eventType() Type
}

// JobStatus is the state of a CI job.
type JobStatus string

const (
	JobUnknown    JobStatus = "UNKNOWN"
	JobDisabled   JobStatus = "DISABLED"
	JobInProgress JobStatus = "IN_PROGRESS"
	JobSuccess    JobStatus = "SUCCESS"
	JobFailure    JobStatus = "FAILURE"
)

// HealthStatus is the state of a health probe.
type HealthStatus string

const (
	HealthUp      HealthStatus = "UP"
	HealthDown    HealthStatus = "DOWN"
	HealthUnknown HealthStatus = "UNKNOWN"
)

type Job struct {
	Status JobStatus `json:"status"`
	URL    *string   `json:"url"`
}

type Health struct {
	Status HealthStatus `json:"status"`
}

type Status struct {
	StatusText string `json:"statusText"`
}

type Figure struct {
	Value   string `json:"value"`
	Subtext string `json:"subtext"`
}

type Quote struct {
	Quote  string `json:"quote"`
	Author string `json:"author"`
}

type Percentage struct {
	Value float64 `json:"value"`
}

// Statistic is one labelled counter.
type Statistic struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type Statistics struct {
	Statistics []Statistic `json:"statistics"`
}

type Weather struct {
	Temperature     float64 `json:"temperature"`
	TemperatureUnit string  `json:"temperatureUnit"`
	Condition       string  `json:"condition"`
}

// Section is a named, ordered list of items.
type Section struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

type List struct {
	Sections []Section `json:"sections"`
}

type Image struct {
	URL string `json:"url"`
}

func (Job) eventType() Type        { return TypeJob }
func (Health) eventType() Type     { return TypeHealth }
func (Status) eventType() Type     { return TypeStatus }
func (Figure) eventType() Type     { return TypeFigure }
func (Quote) eventType() Type      { return TypeQuote }
func (Percentage) eventType() Type { return TypePercentage }
func (Statistics) eventType() Type { return TypeStatistics }
func (Weather) eventType() Type    { return TypeWeather }
func (List) eventType() Type       { return TypeList }
func (Image) eventType() Type      { return TypeImage }

// New builds an event for the given payload, deriving type and level.
// A nil payload produces an UNKNOWN event.
func New(id, name string, level Level, at *string, payload Payload) Event {
	event := Event{
		ID:      id,
		Name:    name,
		Level:   level,
		Time:    at,
		Payload: payload,
	}
	return event.Normalize()
}

// Normalize fills in the type from the payload and derives the level for
// variants whose level follows their status.
func (e Event) Normalize() Event {
	if e.Payload == nil {
		e.Type = TypeUnknown
	} else {
		e.Type = e.Payload.eventType()
	}
	if e.Level == "" {
		e.Level = LevelOK
	}
	switch p := e.Payload.(type) {
	case Job:
		e.Level = p.Status.level()
	case Health:
		e.Level = p.Status.level()
	}
	return e
}

func (s JobStatus) level() Level {
	switch s {
	case JobDisabled:
		return LevelDisabled
	case JobInProgress:
		return LevelInfo
	case JobSuccess:
		return LevelOK
	case JobFailure:
		return LevelError
	default:
		return LevelUnknown
	}
}

func (s HealthStatus) level() Level {
	switch s {
	case HealthUp:
		return LevelOK
	case HealthDown:
		return LevelError
	default:
		return LevelUnknown
	}
}

// ParsedTime parses the event timestamp. It returns false when the time is
// absent or not ISO-8601.
func (e Event) ParsedTime() (time.Time, bool) {
	if e.Time == nil {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, *e.Time); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Timestamp formats t the way producers stamp events.
func Timestamp(t time.Time) *string {
	value := t.Format(time.RFC3339Nano)
	return &value
}

// StringPtr returns a pointer to value.
func StringPtr(value string) *string {
	return &value
}
