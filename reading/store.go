package reading

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/sensorhub/core/csql"
)

// Store persists readings to postgres.
type Store struct {
	db *csql.DB
}

// NewStore returns a store on the given database. It creates the readings
// table if it does not exist yet.
func NewStore(db *csql.DB) *Store {
	createReadingsTableIfNotExists(db)
	return &Store{db: db}
}

// createReadingsTableIfNotExists creates the SQL table for sensor readings.
func createReadingsTableIfNotExists(db *csql.DB) {
	// poor man's database migrations
	_, err := db.Exec(`CREATE table IF NOT EXISTS ` + db.Schema + `."reading"
(reading_id uuid NOT NULL,
device_id varchar NOT NULL,
sensor_kind varchar NOT NULL,
recorded_at timestamptz NOT NULL,
value bigint NOT NULL,
PRIMARY KEY(device_id, sensor_kind, recorded_at)
);`)

	if err != nil {
		panic(err)
	}
}

// Insert stores one reading. The insert is idempotent on the primary key
// (device_id, sensor_kind, recorded_at); a duplicate is silently ignored and
// reported as inserted == false.
func (s *Store) Insert(r Reading) (inserted bool, err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	res, err := s.db.Exec(
		`INSERT INTO `+s.db.Schema+`."reading"(reading_id,device_id,sensor_kind,recorded_at,value)
VALUES($1,$2,$3,$4,$5)
ON CONFLICT (device_id, sensor_kind, recorded_at) DO NOTHING;`,
		r.ID, r.DeviceID, string(r.Kind), r.RecordedAt, r.Value)
	if err != nil {
		return false, fmt.Errorf("cannot insert reading: %w", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// LatestAll returns the most recent reading per (device, kind) from the
// database.
func (s *Store) LatestAll() ([]Reading, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT ON (device_id, sensor_kind)
reading_id, device_id, sensor_kind, recorded_at, value
FROM ` + s.db.Schema + `."reading"
ORDER BY device_id, sensor_kind, recorded_at DESC;`)
	if err != nil {
		return nil, err
	}
	return scanReadings(rows)
}

// Range returns the readings of one (device, kind) ordered by recorded_at
// ascending, optionally restricted to a time range.
func (s *Store) Range(deviceID string, kind Kind, from, to *time.Time) ([]Reading, error) {
	rows, err := s.db.Query(
		`SELECT reading_id, device_id, sensor_kind, recorded_at, value
FROM `+s.db.Schema+`."reading"
WHERE device_id = $1 AND sensor_kind = $2
AND ($3::timestamptz IS NULL OR recorded_at >= $3)
AND ($4::timestamptz IS NULL OR recorded_at <= $4)
ORDER BY recorded_at ASC;`,
		deviceID, string(kind), from, to)
	if err != nil {
		return nil, err
	}
	return scanReadings(rows)
}

// Latest returns the single most recent reading of one (device, kind).
func (s *Store) Latest(deviceID string, kind Kind) (Reading, bool, error) {
	var r Reading
	var kindString string
	err := s.db.QueryRow(
		`SELECT reading_id, device_id, sensor_kind, recorded_at, value
FROM `+s.db.Schema+`."reading"
WHERE device_id = $1 AND sensor_kind = $2
ORDER BY recorded_at DESC
LIMIT 1;`,
		deviceID, string(kind)).Scan(&r.ID, &r.DeviceID, &kindString, &r.RecordedAt, &r.Value)
	if err == csql.ErrNoRows {
		return Reading{}, false, nil
	}
	if err != nil {
		return Reading{}, false, err
	}
	r.Kind = Kind(kindString)
	return r, true, nil
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
}

func scanReadings(rows rowScanner) ([]Reading, error) {
	defer rows.Close()
	all := []Reading{}
	for rows.Next() {
		var r Reading
		var kindString string
		if err := rows.Scan(&r.ID, &r.DeviceID, &kindString, &r.RecordedAt, &r.Value); err != nil {
			return nil, err
		}
		r.Kind = Kind(kindString)
		all = append(all, r)
	}
	return all, nil
}
