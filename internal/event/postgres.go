package event

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// PostgresLog persists events in the app_event table. The seq column is a
// bigserial so "latest" queries are stable even when two appends share a
// timestamp.
type PostgresLog struct {
	db *sqlx.DB
}

var _ Log = (*PostgresLog)(nil)

func NewPostgresLog(db *sqlx.DB) *PostgresLog {
	return &PostgresLog{db: db}
}

const appendQuery = `
INSERT INTO app_event (id, time, type, team_id, class_id, task_id, submission_id, actor_id, actor_role)
VALUES (:id, :time, :type, :team_id, :class_id, :task_id, :submission_id, :actor_id, :actor_role)
RETURNING seq`

func (l *PostgresLog) Append(ctx context.Context, ev *Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	rows, err := l.db.NamedQueryContext(ctx, appendQuery, ev)
	if err != nil {
		return errors.Wrap(err, "appending event")
	}
	defer func() { _ = rows.Close() }()
	if rows.Next() {
		if err := rows.Scan(&ev.Seq); err != nil {
			return errors.Wrap(err, "scanning event seq")
		}
	}
	return errors.Wrap(rows.Err(), "appending event")
}

func typeNameList(types []Type) pq.StringArray {
	names := make(pq.StringArray, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	return names
}

func (l *PostgresLog) Latest(ctx context.Context, teamID int, types ...Type) (*Event, error) {
	var ev Event
	err := l.db.GetContext(ctx, &ev,
		`SELECT * FROM app_event WHERE team_id = $1 AND type = ANY($2) ORDER BY time DESC, seq DESC LIMIT 1`,
		teamID, typeNameList(types))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "querying latest event")
	}
	return &ev, nil
}

func (l *PostgresLog) LatestByActor(ctx context.Context, teamID int, actorID string, types ...Type) (*Event, error) {
	var ev Event
	err := l.db.GetContext(ctx, &ev,
		`SELECT * FROM app_event WHERE team_id = $1 AND actor_id = $2 AND type = ANY($3) ORDER BY time DESC, seq DESC LIMIT 1`,
		teamID, actorID, typeNameList(types))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "querying latest actor event")
	}
	return &ev, nil
}

func (l *PostgresLog) ActorIDs(ctx context.Context, teamID int, types ...Type) ([]string, error) {
	var ids []string
	err := l.db.SelectContext(ctx, &ids,
		`SELECT DISTINCT actor_id FROM app_event WHERE team_id = $1 AND actor_id <> '' AND type = ANY($2)`,
		teamID, typeNameList(types))
	return ids, errors.Wrap(err, "querying event actors")
}

func (l *PostgresLog) ByTeam(ctx context.Context, teamID int) ([]Event, error) {
	var evs []Event
	err := l.db.SelectContext(ctx, &evs,
		`SELECT * FROM app_event WHERE team_id = $1 ORDER BY seq`, teamID)
	return evs, errors.Wrap(err, "querying team events")
}

func (l *PostgresLog) ByClass(ctx context.Context, classID int) ([]Event, error) {
	var evs []Event
	err := l.db.SelectContext(ctx, &evs,
		`SELECT * FROM app_event WHERE class_id = $1 ORDER BY seq`, classID)
	return evs, errors.Wrap(err, "querying class events")
}

func (l *PostgresLog) ByClassBetween(ctx context.Context, classID int, from, to time.Time) ([]Event, error) {
	var evs []Event
	err := l.db.SelectContext(ctx, &evs,
		`SELECT * FROM app_event WHERE class_id = $1 AND time >= $2 AND time < $3 ORDER BY seq`,
		classID, from, to)
	return evs, errors.Wrap(err, "querying class events by time")
}
