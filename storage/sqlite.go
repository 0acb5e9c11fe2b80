package storage

import (
	"database/sql"
	"fmt"
	"regexp"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Markiayn/Parser/models"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// One connection: concurrent crawl and publish triggers share the file,
	// and serializing here is simpler than retrying on SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// tableNameRe guards the identifiers interpolated into partition SQL.
var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func checkTable(table string) error {
	if !tableNameRe.MatchString(table) {
		return fmt.Errorf("invalid partition table name %q", table)
	}
	return nil
}

func (s *SQLiteStore) EnsurePartition(table string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id INTEGER PRIMARY KEY NOT NULL,
		description TEXT,
		address TEXT,
		price INTEGER,
		phone TEXT,
		floor INTEGER,
		floors_count INTEGER,
		rooms INTEGER,
		area REAL,
		photo1 TEXT, photo2 TEXT, photo3 TEXT, photo4 TEXT, photo5 TEXT,
		posted BOOLEAN DEFAULT 0,
		created_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_%s_unposted ON %s(posted, created_at);`, table, table, table)

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) ClearPartition(table string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	_, err := s.db.Exec(fmt.Sprintf("DELETE FROM %s", table))
	return err
}

func (s *SQLiteStore) InsertIfAbsent(table string, apt *models.Apartment) (bool, error) {
	if err := checkTable(table); err != nil {
		return false, err
	}

	photos := apt.PhotoArray()
	res, err := s.db.Exec(fmt.Sprintf(`
		INSERT OR IGNORE INTO %s
		(id, description, address, price, phone, floor, floors_count, rooms, area,
		 photo1, photo2, photo3, photo4, photo5, posted, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, table),
		apt.ID, apt.Description, apt.Address, apt.Price, nullStr(apt.Phone),
		apt.Floor, apt.FloorsCount, apt.Rooms, apt.Area,
		nullStr(photos[0]), nullStr(photos[1]), nullStr(photos[2]), nullStr(photos[3]), nullStr(photos[4]),
		apt.Posted, nullTime(apt.CreatedAt))
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

const apartmentColumns = `id, description, address, price, phone, floor, floors_count, rooms, area,
	photo1, photo2, photo3, photo4, photo5, posted, created_at`

func (s *SQLiteStore) ListUnpublished(table string, limit int, since *time.Time) ([]models.Apartment, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE posted = 0`, apartmentColumns, table)
	args := []interface{}{}
	if since != nil {
		query += " AND created_at >= ?"
		args = append(args, since.Format(timeLayout))
	}
	query += " ORDER BY (created_at IS NULL), created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apts []models.Apartment
	for rows.Next() {
		apt, err := scanApartment(rows)
		if err != nil {
			return nil, err
		}
		apts = append(apts, *apt)
	}
	return apts, rows.Err()
}

func (s *SQLiteStore) FindByID(table string, id int) (*models.Apartment, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	row := s.db.QueryRow(fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, apartmentColumns, table), id)
	apt, err := scanApartment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return apt, nil
}

func (s *SQLiteStore) MarkPublished(table string, id int) error {
	if err := checkTable(table); err != nil {
		return err
	}
	_, err := s.db.Exec(fmt.Sprintf("UPDATE %s SET posted = 1 WHERE id = ?", table), id)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApartment(row rowScanner) (*models.Apartment, error) {
	var apt models.Apartment
	var phone, createdAt sql.NullString
	var photos [models.PhotoSlots]sql.NullString

	err := row.Scan(&apt.ID, &apt.Description, &apt.Address, &apt.Price, &phone,
		&apt.Floor, &apt.FloorsCount, &apt.Rooms, &apt.Area,
		&photos[0], &photos[1], &photos[2], &photos[3], &photos[4],
		&apt.Posted, &createdAt)
	if err != nil {
		return nil, err
	}

	apt.Phone = phone.String
	for _, p := range photos {
		if p.Valid && p.String != "" {
			apt.Photos = append(apt.Photos, p.String)
		}
	}
	if createdAt.Valid && createdAt.String != "" {
		if t, err := time.Parse(timeLayout, createdAt.String); err == nil {
			apt.CreatedAt = t
		}
	}
	return &apt, nil
}

func nullStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.Format(timeLayout)
}
