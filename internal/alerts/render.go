package alerts

import (
	"fmt"

	events "statusboard/internal/events/domain"
)

const (
	ColorOK    = "#1B5E20"
	ColorWarn  = "#F57F17"
	ColorError = "#B71C1C"
)

var levelColors = map[events.Level]string{
	events.LevelOK:    ColorOK,
	events.LevelWarn:  ColorWarn,
	events.LevelError: ColorError,
}

// Attachment is a coloured block shown under the message text.
type Attachment struct {
	Fallback  string  `json:"fallback"`
	Color     string  `json:"color,omitempty"`
	Title     string  `json:"title"`
	TitleLink *string `json:"title_link,omitempty"`
	TS        int64   `json:"ts,omitempty"`
}

// Message is a rendered alert ready for delivery.
type Message struct {
	Text        string
	Attachments []Attachment
}

// Renderer turns one event into a message.
type Renderer interface {
	Render(event events.Event) (Message, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(event events.Event) (Message, error)

func (f RendererFunc) Render(event events.Event) (Message, error) {
	return f(event)
}

// Renderers selects a renderer by event type and falls back to Default.
type Renderers struct {
	ByType  map[events.Type]Renderer
	Default Renderer
}

// DefaultRenderers returns the standard table: a failure notice for jobs, an
// up/down notice for health and status events, and a JSON dump for the rest.
func DefaultRenderers() Renderers {
	health := RendererFunc(renderHealth)
	return Renderers{
		ByType: map[events.Type]Renderer{
			events.TypeJob:    RendererFunc(renderJob),
			events.TypeHealth: health,
			events.TypeStatus: health,
		},
		Default: RendererFunc(renderDefault),
	}
}

// Render dispatches on the event type.
func (r Renderers) Render(event events.Event) (Message, error) {
	if renderer, ok := r.ByType[event.Type]; ok && renderer != nil {
		return renderer.Render(event)
	}
	if r.Default == nil {
		return Message{}, fmt.Errorf("alerts: no renderer for %s", event.Type)
	}
	return r.Default.Render(event)
}

func renderJob(event events.Event) (Message, error) {
	text := fmt.Sprintf("Job %s has failed. ", event.Name)
	var link *string
	if job, ok := event.Payload.(events.Job); ok {
		link = job.URL
	}
	return Message{
		Text: text,
		Attachments: []Attachment{{
			Fallback:  text,
			Color:     ColorError,
			Title:     text,
			TitleLink: link,
			TS:        epochSeconds(event),
		}},
	}, nil
}

func renderHealth(event events.Event) (Message, error) {
	text := fmt.Sprintf("App %s is down! ", event.Name)
	if event.Level == events.LevelOK {
		text = fmt.Sprintf("App %s is back up! ", event.Name)
	}
	return Message{
		Text: text,
		Attachments: []Attachment{{
			Fallback: text,
			Color:    levelColors[event.Level],
			Title:    text,
			TS:       epochSeconds(event),
		}},
	}, nil
}

func renderDefault(event events.Event) (Message, error) {
	header := ""
	switch event.Level {
	case events.LevelWarn:
		header = fmt.Sprintf("Check out %s. ", event.Name)
	case events.LevelError:
		header = fmt.Sprintf("Something is wrong with %s! ", event.Name)
	}
	body, err := events.EncodeIndent(event)
	if err != nil {
		return Message{}, fmt.Errorf("alert render: encode %s: %w", event.ID, err)
	}
	return Message{Text: fmt.Sprintf("%s\n```\n%s\n```", header, body)}, nil
}

func epochSeconds(event events.Event) int64 {
	at, ok := event.ParsedTime()
	if !ok {
		return 0
	}
	return at.Unix()
}
