package riderepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/rice-apps/carpool-backend/internal/adapters/postgres"
	"github.com/rice-apps/carpool-backend/internal/domain"
	"github.com/rice-apps/carpool-backend/internal/ports/out/riderepo"
)

// Repo is a Postgres implementation of riderepo.Repository. Membership
// lives in a ride_riders join table ordered by a position column; AddRider
// and RemoveRider run inside a transaction holding the ride row lock, which
// makes them atomic with respect to concurrent membership mutations.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) Create(ctx context.Context, rd riderepo.Ride) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	rideUUID, err := uuid.Parse(string(rd.ID))
	if err != nil {
		return fmt.Errorf("invalid ride id: %w", err)
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO rides (id, departing_at, departing_from, arriving_at, number_riders, comments, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
			rideUUID,
			rd.DepartingAt.UTC(),
			rd.DepartingFrom,
			rd.ArrivingAt,
			rd.NumberRiders,
			rd.Comments,
			rd.CreatedAt.UTC(),
			rd.UpdatedAt.UTC(),
		)
		if err != nil {
			if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode {
				return riderepo.ErrAlreadyExists
			}
			return err
		}

		for i, userID := range rd.RiderIDs {
			userUUID, err := uuid.Parse(string(userID))
			if err != nil {
				return fmt.Errorf("invalid rider id: %w", err)
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO ride_riders (ride_id, user_id, position)
				VALUES ($1, $2, $3)
			`, rideUUID, userUUID, i); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repo) GetByID(ctx context.Context, id domain.RideID) (riderepo.Ride, error) {
	if r.pool == nil {
		return riderepo.Ride{}, errors.New("nil postgres pool")
	}
	rideUUID, err := uuid.Parse(string(id))
	if err != nil {
		return riderepo.Ride{}, riderepo.ErrNotFound
	}

	var out riderepo.Ride
	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		out, err = getRide(ctx, tx, rideUUID)
		return err
	})
	return out, err
}

func (r *Repo) AddRider(ctx context.Context, id domain.RideID, userID domain.UserID) (riderepo.Ride, error) {
	if r.pool == nil {
		return riderepo.Ride{}, errors.New("nil postgres pool")
	}
	rideUUID, err := uuid.Parse(string(id))
	if err != nil {
		return riderepo.Ride{}, riderepo.ErrNotFound
	}
	userUUID, err := uuid.Parse(string(userID))
	if err != nil {
		return riderepo.Ride{}, riderepo.ErrRiderNotFound
	}

	var out riderepo.Ride
	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockRide(ctx, tx, rideUUID); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO ride_riders (ride_id, user_id, position)
			SELECT $1, $2, COALESCE(MAX(position) + 1, 0)
			FROM ride_riders
			WHERE ride_id = $1
		`, rideUUID, userUUID)
		if err != nil {
			if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode {
				return riderepo.ErrRiderExists
			}
			return err
		}

		if err := touchRide(ctx, tx, rideUUID); err != nil {
			return err
		}
		out, err = getRide(ctx, tx, rideUUID)
		return err
	})
	return out, err
}

func (r *Repo) RemoveRider(ctx context.Context, id domain.RideID, userID domain.UserID) (riderepo.Ride, error) {
	if r.pool == nil {
		return riderepo.Ride{}, errors.New("nil postgres pool")
	}
	rideUUID, err := uuid.Parse(string(id))
	if err != nil {
		return riderepo.Ride{}, riderepo.ErrNotFound
	}
	userUUID, err := uuid.Parse(string(userID))
	if err != nil {
		return riderepo.Ride{}, riderepo.ErrRiderNotFound
	}

	var out riderepo.Ride
	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockRide(ctx, tx, rideUUID); err != nil {
			return err
		}

		ct, err := tx.Exec(ctx, `
			DELETE FROM ride_riders
			WHERE ride_id = $1 AND user_id = $2
		`, rideUUID, userUUID)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return riderepo.ErrRiderNotFound
		}

		if err := touchRide(ctx, tx, rideUUID); err != nil {
			return err
		}
		out, err = getRide(ctx, tx, rideUUID)
		return err
	})
	return out, err
}

func (r *Repo) Delete(ctx context.Context, id domain.RideID) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	rideUUID, err := uuid.Parse(string(id))
	if err != nil {
		// Nothing with a malformed id can exist; deletion is idempotent.
		return nil
	}
	_, err = r.pool.Exec(ctx, `DELETE FROM rides WHERE id = $1`, rideUUID)
	return err
}

func (r *Repo) List(ctx context.Context) ([]riderepo.Ride, error) {
	return r.list(ctx, ``)
}

func (r *Repo) ListDepartingBefore(ctx context.Context, t time.Time) ([]riderepo.Ride, error) {
	return r.list(ctx, `WHERE departing_at < $1`, t.UTC())
}

func (r *Repo) ListDepartingAtOrAfter(ctx context.Context, t time.Time) ([]riderepo.Ride, error) {
	return r.list(ctx, `WHERE departing_at >= $1`, t.UTC())
}

func (r *Repo) ListForRider(ctx context.Context, userID domain.UserID) ([]riderepo.Ride, error) {
	userUUID, err := uuid.Parse(string(userID))
	if err != nil {
		return []riderepo.Ride{}, nil
	}
	return r.list(ctx, `WHERE id IN (SELECT ride_id FROM ride_riders WHERE user_id = $1)`, userUUID)
}

func (r *Repo) list(ctx context.Context, where string, args ...any) ([]riderepo.Ride, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}

	var out []riderepo.Ride
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, departing_at, departing_from, arriving_at, number_riders, comments, created_at, updated_at
			FROM rides
			`+where+`
			ORDER BY departing_at ASC, id ASC
		`, args...)
		if err != nil {
			return err
		}
		ids := make([]uuid.UUID, 0)
		out = make([]riderepo.Ride, 0)
		for rows.Next() {
			rd, id, err := scanRide(rows)
			if err != nil {
				rows.Close()
				return err
			}
			out = append(out, rd)
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for i, id := range ids {
			riders, err := getRiders(ctx, tx, id)
			if err != nil {
				return err
			}
			out[i].RiderIDs = riders
		}
		return nil
	})
	return out, err
}

func lockRide(ctx context.Context, tx pgx.Tx, rideUUID uuid.UUID) error {
	var one int
	err := tx.QueryRow(ctx, `SELECT 1 FROM rides WHERE id = $1 FOR UPDATE`, rideUUID).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return riderepo.ErrNotFound
		}
		return err
	}
	return nil
}

func touchRide(ctx context.Context, tx pgx.Tx, rideUUID uuid.UUID) error {
	_, err := tx.Exec(ctx, `UPDATE rides SET updated_at = now() WHERE id = $1`, rideUUID)
	return err
}

func getRide(ctx context.Context, tx pgx.Tx, rideUUID uuid.UUID) (riderepo.Ride, error) {
	rd, _, err := scanRide(tx.QueryRow(ctx, `
		SELECT id, departing_at, departing_from, arriving_at, number_riders, comments, created_at, updated_at
		FROM rides
		WHERE id = $1
	`, rideUUID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return riderepo.Ride{}, riderepo.ErrNotFound
		}
		return riderepo.Ride{}, err
	}
	riders, err := getRiders(ctx, tx, rideUUID)
	if err != nil {
		return riderepo.Ride{}, err
	}
	rd.RiderIDs = riders
	return rd, nil
}

func getRiders(ctx context.Context, tx pgx.Tx, rideUUID uuid.UUID) ([]domain.UserID, error) {
	rows, err := tx.Query(ctx, `
		SELECT user_id
		FROM ride_riders
		WHERE ride_id = $1
		ORDER BY position ASC
	`, rideUUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.UserID, 0)
	for rows.Next() {
		var userUUID uuid.UUID
		if err := rows.Scan(&userUUID); err != nil {
			return nil, err
		}
		out = append(out, domain.UserID(userUUID.String()))
	}
	return out, rows.Err()
}

func scanRide(row pgx.Row) (riderepo.Ride, uuid.UUID, error) {
	var (
		id  uuid.UUID
		out riderepo.Ride
	)
	err := row.Scan(&id, &out.DepartingAt, &out.DepartingFrom, &out.ArrivingAt, &out.NumberRiders, &out.Comments, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return riderepo.Ride{}, uuid.UUID{}, err
	}
	out.ID = domain.RideID(id.String())
	return out, id, nil
}
