package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Markiayn/Parser/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) EnsurePartition(table string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id BIGINT PRIMARY KEY,
		description TEXT,
		address TEXT,
		price INTEGER,
		phone TEXT,
		floor INTEGER,
		floors_count INTEGER,
		rooms INTEGER,
		area DOUBLE PRECISION,
		photo1 TEXT, photo2 TEXT, photo3 TEXT, photo4 TEXT, photo5 TEXT,
		posted BOOLEAN DEFAULT FALSE,
		created_at TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_%s_unposted ON %s(posted, created_at);`, table, table, table)

	_, err := s.pool.Exec(context.Background(), schema)
	return err
}

func (s *PostgresStore) ClearPartition(table string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	_, err := s.pool.Exec(context.Background(), fmt.Sprintf("DELETE FROM %s", table))
	return err
}

func (s *PostgresStore) InsertIfAbsent(table string, apt *models.Apartment) (bool, error) {
	if err := checkTable(table); err != nil {
		return false, err
	}

	photos := apt.PhotoArray()
	tag, err := s.pool.Exec(context.Background(), fmt.Sprintf(`
		INSERT INTO %s
		(id, description, address, price, phone, floor, floors_count, rooms, area,
		 photo1, photo2, photo3, photo4, photo5, posted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO NOTHING`, table),
		apt.ID, apt.Description, apt.Address, apt.Price, nullStr(apt.Phone),
		apt.Floor, apt.FloorsCount, apt.Rooms, apt.Area,
		nullStr(photos[0]), nullStr(photos[1]), nullStr(photos[2]), nullStr(photos[3]), nullStr(photos[4]),
		apt.Posted, pgNullTime(apt.CreatedAt))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) ListUnpublished(table string, limit int, since *time.Time) ([]models.Apartment, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE posted = FALSE`, apartmentColumns, table)
	args := []interface{}{}
	if since != nil {
		args = append(args, *since)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC NULLS LAST LIMIT $%d", len(args))

	rows, err := s.pool.Query(context.Background(), query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apts []models.Apartment
	for rows.Next() {
		apt, err := scanPgApartment(rows)
		if err != nil {
			return nil, err
		}
		apts = append(apts, *apt)
	}
	return apts, rows.Err()
}

func (s *PostgresStore) FindByID(table string, id int) (*models.Apartment, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(context.Background(),
		fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, apartmentColumns, table), id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return scanPgApartment(rows)
}

func (s *PostgresStore) MarkPublished(table string, id int) error {
	if err := checkTable(table); err != nil {
		return err
	}
	_, err := s.pool.Exec(context.Background(),
		fmt.Sprintf("UPDATE %s SET posted = TRUE WHERE id = $1", table), id)
	return err
}

func scanPgApartment(row pgx.Row) (*models.Apartment, error) {
	var apt models.Apartment
	var phone *string
	var photos [models.PhotoSlots]*string
	var createdAt *time.Time

	err := row.Scan(&apt.ID, &apt.Description, &apt.Address, &apt.Price, &phone,
		&apt.Floor, &apt.FloorsCount, &apt.Rooms, &apt.Area,
		&photos[0], &photos[1], &photos[2], &photos[3], &photos[4],
		&apt.Posted, &createdAt)
	if err != nil {
		return nil, err
	}

	if phone != nil {
		apt.Phone = *phone
	}
	for _, p := range photos {
		if p != nil && *p != "" {
			apt.Photos = append(apt.Photos, *p)
		}
	}
	if createdAt != nil {
		apt.CreatedAt = *createdAt
	}
	return &apt, nil
}

func pgNullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
