package producers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	events "statusboard/internal/events/domain"
)

// JenkinsJob is one monitored job. URL points at the job's JSON API.
type JenkinsJob struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// JenkinsConfig holds the shared credentials and the job list.
type JenkinsConfig struct {
	Username string        `yaml:"username"`
	Token    string        `yaml:"token"`
	Interval time.Duration `yaml:"interval"`
	Jobs     []JenkinsJob  `yaml:"jobs"`
}

type jenkinsJobResponse struct {
	Color  string `json:"color"`
	Builds []struct {
		URL string `json:"url"`
	} `json:"builds"`
}

type jenkinsBuildResponse struct {
	Timestamp int64 `json:"timestamp"`
}

// Jenkins publishes the last build state of each configured job.
type Jenkins struct {
	cfg       JenkinsConfig
	client    *http.Client
	publisher Publisher
	logger    logrus.FieldLogger
}

// NewJenkins constructs the Jenkins producer.
func NewJenkins(cfg JenkinsConfig, client *http.Client, publisher Publisher, logger logrus.FieldLogger) (*Jenkins, error) {
	if publisher == nil {
		return nil, errors.New("jenkins producer: nil publisher")
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Jenkins{cfg: cfg, client: client, publisher: publisher, logger: logger}, nil
}

func (j *Jenkins) Name() string { return "jenkins" }

// Poll publishes one event per job. A job that cannot be read is published as UNKNOWN without a time.
func (j *Jenkins) Poll(ctx context.Context) error {
	var errs []error
	for _, job := range j.cfg.Jobs {
		event, err := j.jobEvent(ctx, job)
		if err != nil {
			j.logger.WithError(err).Warnf("jenkins producer: job %s", job.ID)
			event = events.New("job.jenkins."+job.ID, job.Name, events.LevelUnknown, nil, events.Job{Status: events.JobUnknown})
		}
		if _, err := j.publisher.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (j *Jenkins) jobEvent(ctx context.Context, job JenkinsJob) (events.Event, error) {
	var resp jenkinsJobResponse
	if err := doJSON(ctx, j.client, j.request(job.URL), &resp); err != nil {
		return events.Event{}, err
	}
	payload := events.Job{Status: jenkinsStatus(resp.Color)}
	if len(resp.Builds) == 0 {
		return events.New("job.jenkins."+job.ID, job.Name, "", nil, payload), nil
	}

	lastBuild := resp.Builds[0].URL
	payload.URL = events.StringPtr(lastBuild)
	var build jenkinsBuildResponse
	if err := doJSON(ctx, j.client, j.request(lastBuild+"api/json"), &build); err != nil {
		return events.Event{}, err
	}
	at := events.Timestamp(time.UnixMilli(build.Timestamp).UTC())
	return events.New("job.jenkins."+job.ID, job.Name, "", at, payload), nil
}

func (j *Jenkins) request(url string) request {
	return request{url: url, user: j.cfg.Username, pass: j.cfg.Token}
}

func jenkinsStatus(color string) events.JobStatus {
	switch {
	case color == "disabled":
		return events.JobDisabled
	case strings.HasSuffix(color, "_anime"):
		return events.JobInProgress
	case color == "blue":
		return events.JobSuccess
	default:
		return events.JobFailure
	}
}
