package reminderjob

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/rice-apps/carpool-backend/internal/adapters/postgres"
	"github.com/rice-apps/carpool-backend/internal/domain"
	"github.com/rice-apps/carpool-backend/internal/ports/out/reminderjob"
)

// Store is a Postgres implementation of reminderjob.Store. Jobs live in a
// reminder_jobs table keyed by ride id, with recipients as a text array.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Create(ctx context.Context, j reminderjob.Job) error {
	if s.pool == nil {
		return errors.New("nil postgres pool")
	}
	rideUUID, err := uuid.Parse(string(j.RideID))
	if err != nil {
		return err
	}
	recipients := j.Recipients
	if recipients == nil {
		recipients = []string{}
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO reminder_jobs (ride_id, fire_at, recipients)
		VALUES ($1, $2, $3)
	`, rideUUID, j.FireAt.UTC(), recipients)
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode {
			return reminderjob.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *Store) GetByRideID(ctx context.Context, id domain.RideID) (reminderjob.Job, error) {
	if s.pool == nil {
		return reminderjob.Job{}, errors.New("nil postgres pool")
	}
	rideUUID, err := uuid.Parse(string(id))
	if err != nil {
		return reminderjob.Job{}, reminderjob.ErrNotFound
	}

	var (
		out      reminderjob.Job
		scanUUID uuid.UUID
	)
	err = s.pool.QueryRow(ctx, `
		SELECT ride_id, fire_at, recipients
		FROM reminder_jobs
		WHERE ride_id = $1
	`, rideUUID).Scan(&scanUUID, &out.FireAt, &out.Recipients)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return reminderjob.Job{}, reminderjob.ErrNotFound
		}
		return reminderjob.Job{}, err
	}
	out.RideID = domain.RideID(scanUUID.String())
	if out.Recipients == nil {
		out.Recipients = []string{}
	}
	return out, nil
}

func (s *Store) Save(ctx context.Context, j reminderjob.Job) error {
	if s.pool == nil {
		return errors.New("nil postgres pool")
	}
	rideUUID, err := uuid.Parse(string(j.RideID))
	if err != nil {
		return err
	}
	recipients := j.Recipients
	if recipients == nil {
		recipients = []string{}
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO reminder_jobs (ride_id, fire_at, recipients)
		VALUES ($1, $2, $3)
		ON CONFLICT (ride_id) DO UPDATE
		SET fire_at = EXCLUDED.fire_at, recipients = EXCLUDED.recipients
	`, rideUUID, j.FireAt.UTC(), recipients)
	return err
}

func (s *Store) CancelByRideID(ctx context.Context, id domain.RideID) (int, error) {
	if s.pool == nil {
		return 0, errors.New("nil postgres pool")
	}
	rideUUID, err := uuid.Parse(string(id))
	if err != nil {
		return 0, nil
	}
	ct, err := s.pool.Exec(ctx, `DELETE FROM reminder_jobs WHERE ride_id = $1`, rideUUID)
	if err != nil {
		return 0, err
	}
	return int(ct.RowsAffected()), nil
}

func (s *Store) ListDue(ctx context.Context, now time.Time) ([]reminderjob.Job, error) {
	if s.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	rows, err := s.pool.Query(ctx, `
		SELECT ride_id, fire_at, recipients
		FROM reminder_jobs
		WHERE fire_at <= $1
		ORDER BY fire_at ASC, ride_id ASC
	`, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]reminderjob.Job, 0)
	for rows.Next() {
		var (
			j        reminderjob.Job
			scanUUID uuid.UUID
		)
		if err := rows.Scan(&scanUUID, &j.FireAt, &j.Recipients); err != nil {
			return nil, err
		}
		j.RideID = domain.RideID(scanUUID.String())
		if j.Recipients == nil {
			j.Recipients = []string{}
		}
		out = append(out, j)
	}
	return out, rows.Err()
}
