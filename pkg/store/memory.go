package store

import (
	"context"
	"sync"
	"time"

	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/entities"
	"github.com/jonboulle/clockwork"
)

type deviceKey struct {
	board   string
	address string
}

// Memory is a Store backed by maps guarded by a single RWMutex.
type Memory struct {
	mu    sync.RWMutex
	clock clockwork.Clock

	boards         map[string]entities.Board
	sensors        map[int64]entities.Sensor
	sensorIndex    map[deviceKey]int64
	actuators      map[int64]entities.Actuator
	actuatorIndex  map[deviceKey]int64
	readings       []entities.Reading
	events         []entities.Event
	nextSensorID   int64
	nextActuatorID int64
	nextReadingID  int64
	nextEventID    int64
}

func NewMemory(clock clockwork.Clock) *Memory {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Memory{
		clock:         clock,
		boards:        make(map[string]entities.Board),
		sensors:       make(map[int64]entities.Sensor),
		sensorIndex:   make(map[deviceKey]int64),
		actuators:     make(map[int64]entities.Actuator),
		actuatorIndex: make(map[deviceKey]int64),
	}
}

func (m *Memory) GetBoard(_ context.Context, identifier string) (entities.Board, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	board, ok := m.boards[identifier]
	if !ok {
		return entities.Board{}, ErrNotFound
	}
	return board, nil
}

func (m *Memory) CreateBoard(_ context.Context, board entities.Board) (entities.Board, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.boards[board.Identifier]; ok {
		return existing, false, nil
	}
	board.CreatedAt = m.clock.Now()
	m.boards[board.Identifier] = board
	return board, true, nil
}

func (m *Memory) TouchBoard(_ context.Context, identifier, status string, seen time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	board, ok := m.boards[identifier]
	if !ok {
		return ErrNotFound
	}
	board.Status = status
	board.LastSeen = &seen
	m.boards[identifier] = board
	return nil
}

func (m *Memory) CountBoards(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.boards), nil
}

func (m *Memory) FindSensor(_ context.Context, board, address string) (entities.Sensor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.sensorIndex[deviceKey{board, address}]
	if !ok {
		return entities.Sensor{}, ErrNotFound
	}
	return m.sensors[id], nil
}

func (m *Memory) UpsertSensor(_ context.Context, sensor entities.Sensor) (entities.Sensor, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.boards[sensor.Board]; !ok {
		return entities.Sensor{}, false, ErrNotFound
	}
	key := deviceKey{sensor.Board, sensor.Address}
	if id, ok := m.sensorIndex[key]; ok {
		existing := m.sensors[id]
		existing.Name = sensor.Name
		existing.Type = sensor.Type
		existing.Unit = sensor.Unit
		existing.Status = sensor.Status
		m.sensors[id] = existing
		return existing, false, nil
	}
	m.nextSensorID++
	sensor.ID = m.nextSensorID
	sensor.CreatedAt = m.clock.Now()
	m.sensors[sensor.ID] = sensor
	m.sensorIndex[key] = sensor.ID
	return sensor, true, nil
}

func (m *Memory) RecordSensorValue(_ context.Context, id int64, value float64, status string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sensor, ok := m.sensors[id]
	if !ok {
		return ErrNotFound
	}
	sensor.CurrentValue = &value
	sensor.Status = status
	sensor.LastReading = &at
	m.sensors[id] = sensor
	return nil
}

func (m *Memory) SetSensorStatus(_ context.Context, id int64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sensor, ok := m.sensors[id]
	if !ok {
		return ErrNotFound
	}
	sensor.Status = status
	m.sensors[id] = sensor
	return nil
}

func (m *Memory) AppendReading(_ context.Context, sensorID int64, value float64, at time.Time) (entities.Reading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sensors[sensorID]; !ok {
		return entities.Reading{}, ErrNotFound
	}
	m.nextReadingID++
	reading := entities.Reading{ID: m.nextReadingID, SensorID: sensorID, Value: value, Timestamp: at}
	m.readings = append(m.readings, reading)
	return reading, nil
}

// ListReadings returns the readings of one sensor, newest first.
func (m *Memory) ListReadings(_ context.Context, sensorID int64) ([]entities.Reading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	readings := []entities.Reading{}
	for i := len(m.readings) - 1; i >= 0; i-- {
		if m.readings[i].SensorID == sensorID {
			readings = append(readings, m.readings[i])
		}
	}
	return readings, nil
}

func (m *Memory) GetActuator(_ context.Context, id int64) (entities.Actuator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	actuator, ok := m.actuators[id]
	if !ok {
		return entities.Actuator{}, ErrNotFound
	}
	return actuator, nil
}

func (m *Memory) FindActuator(_ context.Context, board, address string) (entities.Actuator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.actuatorIndex[deviceKey{board, address}]
	if !ok {
		return entities.Actuator{}, ErrNotFound
	}
	return m.actuators[id], nil
}

func (m *Memory) UpsertActuator(_ context.Context, actuator entities.Actuator) (entities.Actuator, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.boards[actuator.Board]; !ok {
		return entities.Actuator{}, false, ErrNotFound
	}
	key := deviceKey{actuator.Board, actuator.Address}
	if id, ok := m.actuatorIndex[key]; ok {
		existing := m.actuators[id]
		existing.Name = actuator.Name
		existing.Type = actuator.Type
		existing.MinValue = actuator.MinValue
		existing.MaxValue = actuator.MaxValue
		existing.Unit = actuator.Unit
		m.actuators[id] = existing
		return existing, false, nil
	}
	m.nextActuatorID++
	actuator.ID = m.nextActuatorID
	actuator.CreatedAt = m.clock.Now()
	m.actuators[actuator.ID] = actuator
	m.actuatorIndex[key] = actuator.ID
	return actuator, true, nil
}

func (m *Memory) UpdateActuatorState(_ context.Context, id int64, state entities.ActuatorState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	actuator, ok := m.actuators[id]
	if !ok {
		return ErrNotFound
	}
	commandTime := state.LastCommandTime
	latency := state.LastCommandLatency
	actuator.Status = state.Status
	if state.CurrentValue != nil {
		value := *state.CurrentValue
		actuator.CurrentValue = &value
	}
	actuator.LastCommand = state.LastCommand
	actuator.LastCommandTime = &commandTime
	actuator.LastCommandLatency = &latency
	m.actuators[id] = actuator
	return nil
}

func (m *Memory) AppendEvent(_ context.Context, event entities.Event) (entities.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextEventID++
	event.ID = m.nextEventID
	if event.Timestamp.IsZero() {
		event.Timestamp = m.clock.Now()
	}
	if event.Severity == "" {
		event.Severity = entities.SeverityInfo
	}
	m.events = append(m.events, event)
	return event, nil
}

// ListEvents returns the event log, newest first.
func (m *Memory) ListEvents(_ context.Context) ([]entities.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	events := make([]entities.Event, 0, len(m.events))
	for i := len(m.events) - 1; i >= 0; i-- {
		events = append(events, m.events[i])
	}
	return events, nil
}

func (m *Memory) Close() error { return nil }

var _ Store = (*Memory)(nil)
