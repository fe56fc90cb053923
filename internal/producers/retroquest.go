package producers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	events "statusboard/internal/events/domain"
)

// RetroQuestTeam is one team board.
type RetroQuestTeam struct {
	Name        string `yaml:"name"`
	DisplayName string `yaml:"displayName"`
	Password    string `yaml:"password"`
	URL         string `yaml:"url"`
}

// RetroQuestConfig lists the team boards.
type RetroQuestConfig struct {
	Interval time.Duration    `yaml:"interval"`
	Teams    []RetroQuestTeam `yaml:"teams"`
}

type retroQuestLogin struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type retroQuestActionItem struct {
	Task        string `json:"task"`
	Assignee    string `json:"assignee"`
	Completed   bool   `json:"completed"`
	DateCreated string `json:"dateCreated"`
}

// RetroQuest publishes each team's open action items.
type RetroQuest struct {
	cfg       RetroQuestConfig
	client    *http.Client
	publisher Publisher
	logger    logrus.FieldLogger
}

// NewRetroQuest constructs the action item producer.
func NewRetroQuest(cfg RetroQuestConfig, client *http.Client, publisher Publisher, logger logrus.FieldLogger) (*RetroQuest, error) {
	if publisher == nil {
		return nil, errors.New("retroquest producer: nil publisher")
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RetroQuest{cfg: cfg, client: client, publisher: publisher, logger: logger}, nil
}

func (r *RetroQuest) Name() string { return "retroquest" }

func (r *RetroQuest) Poll(ctx context.Context) error {
	var errs []error
	for _, team := range r.cfg.Teams {
		items, err := r.actionItems(ctx, team)
		if err != nil {
			r.logger.WithError(err).Warnf("retroquest producer: team %s", team.Name)
			errs = append(errs, err)
			continue
		}
		if _, err := r.publisher.Publish(ctx, actionItemsEvent(team, items)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *RetroQuest) actionItems(ctx context.Context, team RetroQuestTeam) ([]retroQuestActionItem, error) {
	raw, err := doRaw(ctx, r.client, request{
		method: http.MethodPost,
		url:    joinURL(team.URL, "/api/team/login"),
		body:   retroQuestLogin{Name: team.Name, Password: team.Password},
	})
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	token := strings.Trim(strings.TrimSpace(string(raw)), `"`)

	var items []retroQuestActionItem
	err = doJSON(ctx, r.client, request{
		url:     joinURL(team.URL, fmt.Sprintf("/api/team/%s/action-items", url.PathEscape(team.Name))),
		headers: map[string]string{"Authorization": "Bearer " + token},
	}, &items)
	return items, err
}

func actionItemsEvent(team RetroQuestTeam, items []retroQuestActionItem) events.Event {
	open := make([]string, 0, len(items))
	var newest time.Time
	for _, item := range items {
		if item.Completed {
			continue
		}
		if strings.TrimSpace(item.Assignee) != "" {
			open = append(open, fmt.Sprintf("%s (%s)", item.Task, item.Assignee))
		} else {
			open = append(open, item.Task)
		}
		if created, err := time.Parse("2006-01-02", item.DateCreated); err == nil && created.After(newest) {
			newest = created
		}
	}
	var at *string
	if !newest.IsZero() {
		at = events.StringPtr(newest.UTC().Format(time.RFC3339))
	}
	return events.New("list.actionitems."+team.Name, team.DisplayName, events.LevelOK, at, events.List{
		Sections: []events.Section{{Name: "Action Items", Items: open}},
	})
}
