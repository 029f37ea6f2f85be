package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	authweb "github.com/goliatone/go-auth-web"
	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// DefaultRecentLimit caps Recent when no limit is given.
const DefaultRecentLimit = 50

// ActivityModel is the Bun model for the audit trail of form outcomes.
type ActivityModel struct {
	bun.BaseModel `bun:"table:auth_activity"`

	ID          uuid.UUID      `bun:"id,pk,type:uuid"`
	EventType   string         `bun:"event_type,notnull"`
	Form        string         `bun:"form,notnull"`
	UserID      string         `bun:"user_id"`
	EmailDomain string         `bun:"email_domain"`
	Reason      string         `bun:"reason"`
	Code        string         `bun:"code"`
	Metadata    map[string]any `bun:"metadata"`
	OccurredAt  time.Time      `bun:"occurred_at,notnull"`
}

// ActivityStore persists activity events. It implements authweb.ActivitySink.
type ActivityStore struct {
	db      *bun.DB
	records repository.Repository[*ActivityModel]
}

// NewActivityRepository creates the generic repository for ActivityModel.
func NewActivityRepository(db *bun.DB) repository.Repository[*ActivityModel] {
	handlers := repository.ModelHandlers[*ActivityModel]{
		NewRecord: func() *ActivityModel {
			return &ActivityModel{}
		},
		GetID: func(record *ActivityModel) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *ActivityModel, id uuid.UUID) {
			if record != nil {
				record.ID = id
			}
		},
		GetIdentifier: func() string {
			return "event_type"
		},
	}
	return repository.NewRepository(db, handlers)
}

// OpenSQLite opens a Bun handle on a sqlite DSN using the shim driver.
func OpenSQLite(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "open activity database")
	}
	// sqlite in-memory databases are per connection
	sqldb.SetMaxOpenConns(1)
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// NewActivityStore creates a new store.
func NewActivityStore(db *bun.DB) *ActivityStore {
	return &ActivityStore{db: db, records: NewActivityRepository(db)}
}

// Init creates the table and its index when missing.
func (s *ActivityStore) Init(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().
		Model((*ActivityModel)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "create activity table")
	}

	if _, err := s.db.NewCreateIndex().
		Model((*ActivityModel)(nil)).
		Index("idx_auth_activity_occurred_at").
		IfNotExists().
		Column("occurred_at").
		Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "create activity index")
	}
	return nil
}

// Record implements authweb.ActivitySink.
func (s *ActivityStore) Record(ctx context.Context, event authweb.ActivityEvent) error {
	if _, err := s.records.Create(ctx, fromEvent(event)); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "insert activity event").
			WithMetadata(map[string]any{"event": string(event.EventType)})
	}
	return nil
}

// Recent returns the latest events, newest first.
func (s *ActivityStore) Recent(ctx context.Context, limit int) ([]authweb.ActivityEvent, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	models, _, err := s.records.List(ctx, newestFirst(limit))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "select activity events")
	}

	events := make([]authweb.ActivityEvent, len(models))
	for i, m := range models {
		events[i] = toEvent(m)
	}
	return events, nil
}

// CountSince counts events of eventType that occurred at or after since.
func (s *ActivityStore) CountSince(ctx context.Context, eventType authweb.ActivityEventType, since time.Time) (int, error) {
	count, err := s.records.Count(ctx, eventTypeSince(eventType, since))
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "count activity events")
	}
	return count, nil
}

func newestFirst(limit int) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Order("occurred_at DESC").Limit(limit)
	}
}

func eventTypeSince(eventType authweb.ActivityEventType, since time.Time) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			Where("event_type = ?", string(eventType)).
			Where("occurred_at >= ?", since.UTC())
	}
}

func fromEvent(e authweb.ActivityEvent) *ActivityModel {
	id := e.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	occurred := e.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	meta := e.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	return &ActivityModel{
		ID:          id,
		EventType:   string(e.EventType),
		Form:        e.Form,
		UserID:      e.UserID,
		EmailDomain: e.EmailDomain,
		Reason:      string(e.Reason),
		Code:        string(e.Code),
		Metadata:    meta,
		OccurredAt:  occurred.UTC(),
	}
}

func toEvent(m *ActivityModel) authweb.ActivityEvent {
	return authweb.ActivityEvent{
		ID:          m.ID,
		EventType:   authweb.ActivityEventType(m.EventType),
		Form:        m.Form,
		UserID:      m.UserID,
		EmailDomain: m.EmailDomain,
		Reason:      authweb.FailureReason(m.Reason),
		Code:        authweb.ProviderErrorCode(m.Code),
		Metadata:    m.Metadata,
		OccurredAt:  m.OccurredAt,
	}
}
