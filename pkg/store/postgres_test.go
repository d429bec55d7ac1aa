package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/entities"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 1, 2, 7, 45, 4, 0, time.UTC)

func newPostgresMock(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgres(db, clockwork.NewFakeClockAt(testNow)), mock
}

func TestPostgresGetBoard(t *testing.T) {
	store, mock := newPostgresMock(t)
	rows := sqlmock.NewRows([]string{"identifier", "name", "description", "status", "ip_address", "mqtt_topic", "last_seen", "uptime", "created_at"}).
		AddRow("PI-001", "Raspberry Pi 1", "", "online", "", "xiot/PI-001/sensors", testNow, "", testNow)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + boardColumns + " FROM boards WHERE identifier = $1")).
		WithArgs("PI-001").
		WillReturnRows(rows)

	board, err := store.GetBoard(context.Background(), "PI-001")
	require.NoError(t, err)
	assert.Equal(t, "Raspberry Pi 1", board.Name)
	require.NotNil(t, board.LastSeen)
	assert.Equal(t, testNow, *board.LastSeen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetBoardWhenMissingThenNotFound(t *testing.T) {
	store, mock := newPostgresMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM boards WHERE identifier = $1")).
		WithArgs("PI-404").
		WillReturnRows(sqlmock.NewRows([]string{"identifier"}))

	_, err := store.GetBoard(context.Background(), "PI-404")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateBoardInserted(t *testing.T) {
	store, mock := newPostgresMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO boards (" + boardColumns + ") VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) ON CONFLICT (identifier) DO NOTHING")).
		WithArgs("PI-002", "Baseboard PI-002", "", "online", "", "", nil, "", testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	board, created, err := store.CreateBoard(context.Background(), entities.Board{Identifier: "PI-002", Name: "Baseboard PI-002", Status: "online"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, testNow, board.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTouchBoardWhenNoRowThenNotFound(t *testing.T) {
	store, mock := newPostgresMock(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE boards SET status = $1, last_seen = $2 WHERE identifier = $3")).
		WithArgs("online", testNow, "PI-404").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.TouchBoard(context.Background(), "PI-404", "online", testNow)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertSensorReportsCreation(t *testing.T) {
	store, mock := newPostgresMock(t)
	columns := []string{"id", "board_id", "name", "sensor_type", "i2c_address", "unit", "current_value", "min_threshold", "max_threshold", "status", "last_reading", "created_at", "created"}
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO sensors")).
		WithArgs("PI-001", "Temperature (0x10)", "temperature", "0x10", "°C", "active", nil, nil, testNow).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(7, "PI-001", "Temperature (0x10)", "temperature", "0x10", "°C", nil, nil, nil, "active", nil, testNow, true))

	sensor, created, err := store.UpsertSensor(context.Background(), entities.Sensor{
		Board: "PI-001", Name: "Temperature (0x10)", Type: "temperature", Address: "0x10", Unit: "°C", Status: "active",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(7), sensor.ID)
	assert.Nil(t, sensor.CurrentValue)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAppendReading(t *testing.T) {
	store, mock := newPostgresMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO sensor_readings (sensor_id, value, timestamp) VALUES ($1,$2,$3) RETURNING id")).
		WithArgs(int64(7), 23.5, testNow).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	reading, err := store.AppendReading(context.Background(), 7, 23.5, testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(42), reading.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateActuatorState(t *testing.T) {
	store, mock := newPostgresMock(t)
	value := 150.0
	mock.ExpectExec(regexp.QuoteMeta("UPDATE actuators SET status = $1")).
		WithArgs("running", value, "set", testNow, int64(4), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.UpdateActuatorState(context.Background(), 3, entities.ActuatorState{
		Status: "running", CurrentValue: &value, LastCommand: "set", LastCommandTime: testNow, LastCommandLatency: 4,
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAppendEventDefaultsSeverity(t *testing.T) {
	store, mock := newPostgresMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO events (source, event_type, message, severity, timestamp) VALUES ($1,$2,$3,$4,$5) RETURNING id")).
		WithArgs("discovery", "sensor_discovered", "found", "info", testNow).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	event, err := store.AppendEvent(context.Background(), entities.Event{Source: "discovery", Type: "sensor_discovered", Message: "found"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), event.ID)
	assert.Equal(t, entities.SeverityInfo, event.Severity)
	assert.NoError(t, mock.ExpectationsWereMet())
}
