package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/entities"
	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS boards (
	identifier  TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'offline',
	ip_address  TEXT NOT NULL DEFAULT '',
	mqtt_topic  TEXT NOT NULL DEFAULT '',
	last_seen   TIMESTAMPTZ,
	uptime      TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS sensors (
	id            BIGSERIAL PRIMARY KEY,
	board_id      TEXT NOT NULL REFERENCES boards(identifier) ON DELETE CASCADE,
	name          TEXT NOT NULL,
	sensor_type   TEXT NOT NULL,
	i2c_address   TEXT NOT NULL,
	unit          TEXT NOT NULL DEFAULT '',
	current_value DOUBLE PRECISION,
	min_threshold DOUBLE PRECISION,
	max_threshold DOUBLE PRECISION,
	status        TEXT NOT NULL DEFAULT 'inactive',
	last_reading  TIMESTAMPTZ,
	created_at    TIMESTAMPTZ NOT NULL,
	UNIQUE (board_id, i2c_address)
);
CREATE TABLE IF NOT EXISTS actuators (
	id                   BIGSERIAL PRIMARY KEY,
	board_id             TEXT NOT NULL REFERENCES boards(identifier) ON DELETE CASCADE,
	name                 TEXT NOT NULL,
	actuator_type        TEXT NOT NULL,
	i2c_address          TEXT NOT NULL,
	status               TEXT NOT NULL DEFAULT 'off',
	current_value        DOUBLE PRECISION,
	min_value            DOUBLE PRECISION NOT NULL DEFAULT 0,
	max_value            DOUBLE PRECISION NOT NULL DEFAULT 100,
	unit                 TEXT NOT NULL DEFAULT '',
	last_command         TEXT NOT NULL DEFAULT '',
	last_command_time    TIMESTAMPTZ,
	last_command_latency BIGINT,
	created_at           TIMESTAMPTZ NOT NULL,
	UNIQUE (board_id, i2c_address)
);
CREATE TABLE IF NOT EXISTS sensor_readings (
	id        BIGSERIAL PRIMARY KEY,
	sensor_id BIGINT NOT NULL REFERENCES sensors(id) ON DELETE CASCADE,
	value     DOUBLE PRECISION NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS sensor_readings_sensor_ts ON sensor_readings (sensor_id, timestamp DESC);
CREATE TABLE IF NOT EXISTS events (
	id           BIGSERIAL PRIMARY KEY,
	source       TEXT NOT NULL,
	event_type   TEXT NOT NULL,
	message      TEXT NOT NULL,
	severity     TEXT NOT NULL DEFAULT 'info',
	timestamp    TIMESTAMPTZ NOT NULL,
	acknowledged BOOLEAN NOT NULL DEFAULT FALSE
);`

const (
	boardColumns    = "identifier, name, description, status, ip_address, mqtt_topic, last_seen, uptime, created_at"
	sensorColumns   = "id, board_id, name, sensor_type, i2c_address, unit, current_value, min_threshold, max_threshold, status, last_reading, created_at"
	actuatorColumns = "id, board_id, name, actuator_type, i2c_address, status, current_value, min_value, max_value, unit, last_command, last_command_time, last_command_latency, created_at"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// Postgres is a Store on top of database/sql with the lib/pq driver.
type Postgres struct {
	db    *sql.DB
	clock clockwork.Clock
}

func NewPostgres(db *sql.DB, clock clockwork.Clock) *Postgres {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Postgres{db: db, clock: clock}
}

// OpenPostgres connects with dsn and makes sure the schema exists.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	p := NewPostgres(db, nil)
	if err := p.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, schema)
	return err
}

func (p *Postgres) GetBoard(ctx context.Context, identifier string) (entities.Board, error) {
	row := p.db.QueryRowContext(ctx, "SELECT "+boardColumns+" FROM boards WHERE identifier = $1", identifier)
	return scanBoard(row)
}

func (p *Postgres) CreateBoard(ctx context.Context, board entities.Board) (entities.Board, bool, error) {
	board.CreatedAt = p.clock.Now()
	result, err := p.db.ExecContext(ctx,
		"INSERT INTO boards ("+boardColumns+") VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) ON CONFLICT (identifier) DO NOTHING",
		board.Identifier, board.Name, board.Description, board.Status, board.IPAddress, board.Topic,
		nullTime(board.LastSeen), board.Uptime, board.CreatedAt)
	if err != nil {
		return entities.Board{}, false, err
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return entities.Board{}, false, err
	}
	if inserted == 1 {
		return board, true, nil
	}
	existing, err := p.GetBoard(ctx, board.Identifier)
	return existing, false, err
}

func (p *Postgres) TouchBoard(ctx context.Context, identifier, status string, seen time.Time) error {
	result, err := p.db.ExecContext(ctx,
		"UPDATE boards SET status = $1, last_seen = $2 WHERE identifier = $3", status, seen, identifier)
	return expectOneRow(result, err)
}

func (p *Postgres) CountBoards(ctx context.Context) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM boards").Scan(&count)
	return count, err
}

func (p *Postgres) FindSensor(ctx context.Context, board, address string) (entities.Sensor, error) {
	row := p.db.QueryRowContext(ctx,
		"SELECT "+sensorColumns+" FROM sensors WHERE board_id = $1 AND i2c_address = $2", board, address)
	return scanSensor(row)
}

// UpsertSensor relies on xmax being zero only for freshly inserted rows.
func (p *Postgres) UpsertSensor(ctx context.Context, sensor entities.Sensor) (entities.Sensor, bool, error) {
	var created bool
	row := p.db.QueryRowContext(ctx,
		`INSERT INTO sensors (board_id, name, sensor_type, i2c_address, unit, status, min_threshold, max_threshold, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (board_id, i2c_address) DO UPDATE SET name = EXCLUDED.name, sensor_type = EXCLUDED.sensor_type, unit = EXCLUDED.unit, status = EXCLUDED.status
RETURNING `+sensorColumns+`, (xmax = 0)`,
		sensor.Board, sensor.Name, sensor.Type, sensor.Address, sensor.Unit, sensor.Status,
		nullFloat(sensor.MinThreshold), nullFloat(sensor.MaxThreshold), p.clock.Now())
	stored, err := scanSensor(row, &created)
	return stored, created, err
}

func (p *Postgres) RecordSensorValue(ctx context.Context, id int64, value float64, status string, at time.Time) error {
	result, err := p.db.ExecContext(ctx,
		"UPDATE sensors SET current_value = $1, status = $2, last_reading = $3 WHERE id = $4", value, status, at, id)
	return expectOneRow(result, err)
}

func (p *Postgres) SetSensorStatus(ctx context.Context, id int64, status string) error {
	result, err := p.db.ExecContext(ctx, "UPDATE sensors SET status = $1 WHERE id = $2", status, id)
	return expectOneRow(result, err)
}

func (p *Postgres) AppendReading(ctx context.Context, sensorID int64, value float64, at time.Time) (entities.Reading, error) {
	reading := entities.Reading{SensorID: sensorID, Value: value, Timestamp: at}
	err := p.db.QueryRowContext(ctx,
		"INSERT INTO sensor_readings (sensor_id, value, timestamp) VALUES ($1,$2,$3) RETURNING id",
		sensorID, value, at).Scan(&reading.ID)
	return reading, err
}

func (p *Postgres) ListReadings(ctx context.Context, sensorID int64) ([]entities.Reading, error) {
	rows, err := p.db.QueryContext(ctx,
		"SELECT id, sensor_id, value, timestamp FROM sensor_readings WHERE sensor_id = $1 ORDER BY timestamp DESC, id DESC", sensorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	readings := []entities.Reading{}
	for rows.Next() {
		var reading entities.Reading
		if err := rows.Scan(&reading.ID, &reading.SensorID, &reading.Value, &reading.Timestamp); err != nil {
			return nil, err
		}
		readings = append(readings, reading)
	}
	return readings, rows.Err()
}

func (p *Postgres) GetActuator(ctx context.Context, id int64) (entities.Actuator, error) {
	row := p.db.QueryRowContext(ctx, "SELECT "+actuatorColumns+" FROM actuators WHERE id = $1", id)
	return scanActuator(row)
}

func (p *Postgres) FindActuator(ctx context.Context, board, address string) (entities.Actuator, error) {
	row := p.db.QueryRowContext(ctx,
		"SELECT "+actuatorColumns+" FROM actuators WHERE board_id = $1 AND i2c_address = $2", board, address)
	return scanActuator(row)
}

func (p *Postgres) UpsertActuator(ctx context.Context, actuator entities.Actuator) (entities.Actuator, bool, error) {
	var created bool
	row := p.db.QueryRowContext(ctx,
		`INSERT INTO actuators (board_id, name, actuator_type, i2c_address, status, min_value, max_value, unit, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (board_id, i2c_address) DO UPDATE SET name = EXCLUDED.name, actuator_type = EXCLUDED.actuator_type, min_value = EXCLUDED.min_value, max_value = EXCLUDED.max_value, unit = EXCLUDED.unit
RETURNING `+actuatorColumns+`, (xmax = 0)`,
		actuator.Board, actuator.Name, actuator.Type, actuator.Address, actuator.Status,
		actuator.MinValue, actuator.MaxValue, actuator.Unit, p.clock.Now())
	stored, err := scanActuator(row, &created)
	return stored, created, err
}

func (p *Postgres) UpdateActuatorState(ctx context.Context, id int64, state entities.ActuatorState) error {
	result, err := p.db.ExecContext(ctx,
		`UPDATE actuators SET status = $1, current_value = COALESCE($2, current_value), last_command = $3, last_command_time = $4, last_command_latency = $5 WHERE id = $6`,
		state.Status, nullFloat(state.CurrentValue), state.LastCommand, state.LastCommandTime, state.LastCommandLatency, id)
	return expectOneRow(result, err)
}

func (p *Postgres) AppendEvent(ctx context.Context, event entities.Event) (entities.Event, error) {
	if event.Timestamp.IsZero() {
		event.Timestamp = p.clock.Now()
	}
	if event.Severity == "" {
		event.Severity = entities.SeverityInfo
	}
	err := p.db.QueryRowContext(ctx,
		"INSERT INTO events (source, event_type, message, severity, timestamp) VALUES ($1,$2,$3,$4,$5) RETURNING id",
		event.Source, event.Type, event.Message, event.Severity, event.Timestamp).Scan(&event.ID)
	return event, err
}

func (p *Postgres) ListEvents(ctx context.Context) ([]entities.Event, error) {
	rows, err := p.db.QueryContext(ctx,
		"SELECT id, source, event_type, message, severity, timestamp, acknowledged FROM events ORDER BY timestamp DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []entities.Event{}
	for rows.Next() {
		var event entities.Event
		if err := rows.Scan(&event.ID, &event.Source, &event.Type, &event.Message, &event.Severity, &event.Timestamp, &event.Acknowledged); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

func scanBoard(row rowScanner) (entities.Board, error) {
	var board entities.Board
	var lastSeen sql.NullTime
	err := row.Scan(&board.Identifier, &board.Name, &board.Description, &board.Status, &board.IPAddress,
		&board.Topic, &lastSeen, &board.Uptime, &board.CreatedAt)
	if err != nil {
		return entities.Board{}, notFound(err)
	}
	board.LastSeen = timePtr(lastSeen)
	return board, nil
}

func scanSensor(row rowScanner, extra ...any) (entities.Sensor, error) {
	var sensor entities.Sensor
	var current, minimum, maximum sql.NullFloat64
	var lastReading sql.NullTime
	dest := []any{&sensor.ID, &sensor.Board, &sensor.Name, &sensor.Type, &sensor.Address, &sensor.Unit,
		&current, &minimum, &maximum, &sensor.Status, &lastReading, &sensor.CreatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return entities.Sensor{}, notFound(err)
	}
	sensor.CurrentValue = floatPtr(current)
	sensor.MinThreshold = floatPtr(minimum)
	sensor.MaxThreshold = floatPtr(maximum)
	sensor.LastReading = timePtr(lastReading)
	return sensor, nil
}

func scanActuator(row rowScanner, extra ...any) (entities.Actuator, error) {
	var actuator entities.Actuator
	var current sql.NullFloat64
	var commandTime sql.NullTime
	var latency sql.NullInt64
	dest := []any{&actuator.ID, &actuator.Board, &actuator.Name, &actuator.Type, &actuator.Address, &actuator.Status,
		&current, &actuator.MinValue, &actuator.MaxValue, &actuator.Unit, &actuator.LastCommand, &commandTime,
		&latency, &actuator.CreatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return entities.Actuator{}, notFound(err)
	}
	actuator.CurrentValue = floatPtr(current)
	actuator.LastCommandTime = timePtr(commandTime)
	if latency.Valid {
		actuator.LastCommandLatency = &latency.Int64
	}
	return actuator, nil
}

func expectOneRow(result sql.Result, err error) error {
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func nullFloat(value *float64) sql.NullFloat64 {
	if value == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *value, Valid: true}
}

func nullTime(value *time.Time) sql.NullTime {
	if value == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *value, Valid: true}
}

func floatPtr(value sql.NullFloat64) *float64 {
	if !value.Valid {
		return nil
	}
	return &value.Float64
}

func timePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	return &value.Time
}

var _ Store = (*Postgres)(nil)
