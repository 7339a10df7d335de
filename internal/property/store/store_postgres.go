package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"

	"propreg/internal/property/models"
	"propreg/pkg/domain"
	"propreg/pkg/platform/sentinel"
	"propreg/pkg/platform/tx"
)

//go:embed schema.sql
var schema string

// Postgres error codes worth distinguishing from generic failures.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

// PostgresStore persists the registry in PostgreSQL. The property_registry
// singleton row holds last_id; incrementing it takes a row lock, so
// registrations serialize and a rolled back registration never burns an id.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed registry store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the registry tables if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate property schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, p *models.Property) (domain.PropertyID, error) {
	var assigned domain.PropertyID
	err := tx.Run(ctx, s.db, func(ctx context.Context, sqlTx *sql.Tx) error {
		var lastID int64
		err := sqlTx.QueryRowContext(ctx, `
			UPDATE property_registry
			SET last_id = last_id + 1
			WHERE singleton
			RETURNING last_id
		`).Scan(&lastID)
		if err != nil {
			return classify(err, "allocate property id")
		}

		_, err = sqlTx.ExecContext(ctx, `
			INSERT INTO properties (id, owner, location, size, construction_type, risk_zone, registration_height)
			VALUES ($1, $2, $3, $4::numeric, $5, $6, $7::numeric)
		`,
			lastID,
			string(p.Owner),
			p.Location,
			strconv.FormatUint(p.Size, 10),
			p.ConstructionType,
			p.RiskZone,
			strconv.FormatUint(uint64(p.RegistrationHeight), 10),
		)
		if err != nil {
			return classify(err, "insert property")
		}
		assigned = domain.PropertyID(lastID)
		return nil
	})
	if err != nil {
		return 0, err
	}
	p.ID = assigned
	return assigned, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.PropertyID) (*models.Property, error) {
	if uint64(id) > math.MaxInt64 {
		return nil, sentinel.ErrNotFound
	}
	row := s.queryer(ctx).QueryRowContext(ctx, selectProperty+` WHERE id = $1`, int64(id))
	return scanProperty(row)
}

func (s *PostgresStore) Count(ctx context.Context) (domain.PropertyID, error) {
	var lastID int64
	err := s.queryer(ctx).QueryRowContext(ctx, `SELECT last_id FROM property_registry WHERE singleton`).Scan(&lastID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, classify(err, "count properties")
	}
	return domain.PropertyID(lastID), nil
}

// Execute locks the row with FOR UPDATE, validates and mutates it, then
// persists the risk zone, the only mutable column.
func (s *PostgresStore) Execute(ctx context.Context, id domain.PropertyID, validate func(*models.Property) error, mutate func(*models.Property)) (*models.Property, error) {
	if uint64(id) > math.MaxInt64 {
		return nil, sentinel.ErrNotFound
	}
	var updated *models.Property
	err := tx.Run(ctx, s.db, func(ctx context.Context, sqlTx *sql.Tx) error {
		row := sqlTx.QueryRowContext(ctx, selectProperty+` WHERE id = $1 FOR UPDATE`, int64(id))
		p, err := scanProperty(row)
		if err != nil {
			return err
		}
		if err := validate(p); err != nil {
			return err
		}
		mutate(p)

		if _, err := sqlTx.ExecContext(ctx, `UPDATE properties SET risk_zone = $2 WHERE id = $1`, int64(id), p.RiskZone); err != nil {
			return classify(err, "update risk zone")
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queryer joins a transaction already carried by ctx.
func (s *PostgresStore) queryer(ctx context.Context) queryer {
	if sqlTx, ok := tx.From(ctx); ok {
		return sqlTx
	}
	return s.db
}

const selectProperty = `
	SELECT id, owner, location, size::text, construction_type, risk_zone, registration_height::text
	FROM properties`

func scanProperty(row *sql.Row) (*models.Property, error) {
	var (
		id           int64
		owner        string
		size, height string
		p            models.Property
	)
	err := row.Scan(&id, &owner, &p.Location, &size, &p.ConstructionType, &p.RiskZone, &height)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, classify(err, "find property")
	}
	p.ID = domain.PropertyID(id)
	p.Owner = domain.Principal(owner)
	if p.Size, err = strconv.ParseUint(size, 10, 64); err != nil {
		return nil, fmt.Errorf("parse property size: %w", err)
	}
	h, err := strconv.ParseUint(height, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse registration height: %w", err)
	}
	p.RegistrationHeight = domain.BlockHeight(h)
	return &p, nil
}

// classify marks transient lock conflicts as unavailable so callers can
// retry. A duplicate id means the counter row and the properties table
// disagree.
func classify(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected:
			return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
		case pgUniqueViolation:
			return fmt.Errorf("%s: %w: %w", op, sentinel.ErrConflict, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
