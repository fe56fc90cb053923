package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
)

// Listener holds a dedicated connection on LISTEN and feeds notifications to a Store.
type Listener struct {
	dsn     string
	store   *Store
	backoff time.Duration
	logger  logrus.FieldLogger
}

// NewListener constructs a listener for store's channel.
func NewListener(dsn string, store *Store, logger logrus.FieldLogger) (*Listener, error) {
	if dsn == "" {
		return nil, errors.New("postgres listener: empty dsn")
	}
	if store == nil {
		return nil, errors.New("postgres listener: nil store")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Listener{dsn: dsn, store: store, backoff: 2 * time.Second, logger: logger}, nil
}

// Run listens until ctx ends, reconnecting after failures.
func (l *Listener) Run(ctx context.Context) {
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		l.logger.Warnf("postgres listener: %v; reconnecting in %s", err, l.backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(l.backoff):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.store.Channel()}.Sanitize()); err != nil {
		return err
	}
	l.logger.Infof("postgres listener: listening on %s", l.store.Channel())
	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		if err := l.store.Deliver(ctx, n.Payload); err != nil {
			l.logger.Warnf("postgres listener: skip notification: %v", err)
		}
	}
}
