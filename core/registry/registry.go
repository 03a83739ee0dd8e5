/*Package registry provides a persistent registry of objects in a SQL database

The package uses JSON to serialize the data. The hub service uses it to keep
operational state, such as the per-device poll state, across restarts.
*/
package registry

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/relabs-tech/sensorhub/core/csql"
)

// New creates a new registry for the specified database
func New(db *csql.DB) *Registry {
	_, err := db.Exec(`CREATE table IF NOT EXISTS ` + db.Schema + `."_registry_"
(key varchar NOT NULL,
value json NOT NULL,
timestamp timestamptz NOT NULL,
PRIMARY KEY(key)
);`)

	if err != nil {
		panic(err)
	}
	return &Registry{db: db}
}

// Registry provides a persistent registry of objects in a sql database.
type Registry struct {
	db *csql.DB
}

// Read reads a value from the registry. It returns the time when the value
// was written, or a zero timestamp if there is no value.
func (r *Registry) Read(key string, value any) (time.Time, error) {
	var (
		rawValue  json.RawMessage
		timestamp time.Time
	)
	err := r.db.QueryRow(
		`SELECT value, timestamp FROM `+r.db.Schema+`."_registry_" WHERE key=$1;`,
		key).Scan(&rawValue, &timestamp)
	if err == csql.ErrNoRows {
		return timestamp, nil
	}
	if err != nil {
		return timestamp, fmt.Errorf("cannot read key '%s': %s", key, err.Error())
	}
	err = json.Unmarshal(rawValue, value)
	return timestamp, err
}

// Write writes a value into the registry. An existing value for the same key
// is replaced.
func (r *Registry) Write(key string, value any) error {
	body, err := json.Marshal(value)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	res, err := r.db.Exec(
		`INSERT INTO `+r.db.Schema+`."_registry_"(key,value,timestamp)
VALUES($1,$2,$3)
ON CONFLICT (key) DO UPDATE SET value=$2,timestamp=$3;`,
		key, string(body), now)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("could not write key %s", key)
	}
	return nil
}

// Delete deletes a value from the registry.
func (r *Registry) Delete(key string) error {
	_, err := r.db.Exec(
		`DELETE FROM `+r.db.Schema+`."_registry_" WHERE key=$1;`,
		key)
	return err
}
