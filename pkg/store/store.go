// Package store keeps boards, their sensors and actuators, sensor readings and
// the event log. Every method mutates at most one record, and each mutation is
// atomic on its own; no method spans a multi-record transaction.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/entities"
)

var ErrNotFound = errors.New("record not found")

type Store interface {
	GetBoard(ctx context.Context, identifier string) (entities.Board, error)
	// CreateBoard inserts the board unless one with the same identifier exists,
	// in which case the stored board is returned with created=false.
	CreateBoard(ctx context.Context, board entities.Board) (entities.Board, bool, error)
	TouchBoard(ctx context.Context, identifier, status string, seen time.Time) error
	CountBoards(ctx context.Context) (int, error)

	FindSensor(ctx context.Context, board, address string) (entities.Sensor, error)
	UpsertSensor(ctx context.Context, sensor entities.Sensor) (entities.Sensor, bool, error)
	RecordSensorValue(ctx context.Context, id int64, value float64, status string, at time.Time) error
	SetSensorStatus(ctx context.Context, id int64, status string) error
	AppendReading(ctx context.Context, sensorID int64, value float64, at time.Time) (entities.Reading, error)
	ListReadings(ctx context.Context, sensorID int64) ([]entities.Reading, error)

	GetActuator(ctx context.Context, id int64) (entities.Actuator, error)
	FindActuator(ctx context.Context, board, address string) (entities.Actuator, error)
	UpsertActuator(ctx context.Context, actuator entities.Actuator) (entities.Actuator, bool, error)
	UpdateActuatorState(ctx context.Context, id int64, state entities.ActuatorState) error

	AppendEvent(ctx context.Context, event entities.Event) (entities.Event, error)
	ListEvents(ctx context.Context) ([]entities.Event, error)

	Close() error
}

// Seed provisions the boards and devices described by data. Existing records
// are updated in place, so seeding twice is harmless.
func Seed(ctx context.Context, s Store, data entities.SeedData) error {
	for _, seed := range data.Boards {
		board := seed.Board
		if board.Status == "" {
			board.Status = entities.BoardOffline
		}
		if _, _, err := s.CreateBoard(ctx, board); err != nil {
			return err
		}
		for _, sensor := range seed.Sensors {
			sensor.Board = board.Identifier
			if sensor.Status == "" {
				sensor.Status = entities.SensorInactive
			}
			if _, _, err := s.UpsertSensor(ctx, sensor); err != nil {
				return err
			}
		}
		for _, actuator := range seed.Actuators {
			actuator.Board = board.Identifier
			if actuator.Status == "" {
				actuator.Status = entities.ActuatorOff
			}
			if _, _, err := s.UpsertActuator(ctx, actuator); err != nil {
				return err
			}
		}
	}
	return nil
}
