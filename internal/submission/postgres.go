package submission

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// PostgresStore persists submissions in the submission table.
type PostgresStore struct {
	db *sqlx.DB
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, sub *Submission) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, `
INSERT INTO submission (id, team_id, task_id, code, language, status, submitted_at, completion_time)
VALUES (:id, :team_id, :task_id, :code, :language, :status, :submitted_at, :completion_time)`, sub)
	return errors.Wrap(err, "creating submission")
}

func (s *PostgresStore) Update(ctx context.Context, sub *Submission) error {
	_, err := s.db.NamedExecContext(ctx, `
UPDATE submission SET status = :status, completion_time = :completion_time WHERE id = :id`, sub)
	return errors.Wrap(err, "updating submission")
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Submission, error) {
	var sub Submission
	err := s.db.GetContext(ctx, &sub, `SELECT * FROM submission WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "getting submission")
	}
	return &sub, nil
}

func (s *PostgresStore) ByTeam(ctx context.Context, teamID int) ([]Submission, error) {
	var subs []Submission
	err := s.db.SelectContext(ctx, &subs,
		`SELECT * FROM submission WHERE team_id = $1 ORDER BY submitted_at`, teamID)
	return subs, errors.Wrap(err, "listing team submissions")
}
