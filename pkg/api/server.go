// Package api exposes the command, registration and discovery endpoints,
// the live sensor stream and the Prometheus registry over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/entities"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/gateways/xiot"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/gateways/xiot/network"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/store"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type CommandDispatcher interface {
	Dispatch(ctx context.Context, actuatorID int64, request entities.CommandRequest) (entities.CommandResponse, error)
}

type DeviceRegistrar interface {
	Register(ctx context.Context, board string, device entities.DeviceDescriptor) (entities.RegistrationResponse, error)
}

type Dependencies struct {
	Dispatcher CommandDispatcher
	Registrar  DeviceRegistrar
	Publisher  network.Publisher
	Broker     interface{ State() network.ConnectionState }
	Boards     interface {
		CountBoards(ctx context.Context) (int, error)
	}
	// Stream upgrades /ws/sensors/ requests; Observers counts who joined.
	Stream    http.Handler
	Observers interface{ Count() int }
	Gatherer  prometheus.Gatherer
}

type Server struct {
	deps   Dependencies
	router *mux.Router
	log    *logrus.Entry
}

type errorResponse struct {
	Error         string   `json:"error"`
	ValidCommands []string `json:"valid_commands,omitempty"`
}

type discoverRequest struct {
	BoardID string `json:"baseboard_id"`
}

// discoverResponse acknowledges a message handed to the broker.
type discoverResponse struct {
	Status string `json:"status"`
	Topic  string `json:"topic"`
}

type statusResponse struct {
	Broker    string `json:"mqtt_status"`
	Observers int    `json:"observers"`
	Boards    int    `json:"baseboards"`
}

func NewServer(deps Dependencies, log *logrus.Entry) *Server {
	s := &Server{deps: deps, router: mux.NewRouter(), log: log}
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/actuators/{id:[0-9]+}/command/", s.handleCommand).Methods(http.MethodPost)
	api.HandleFunc("/devices/register/", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/devices/discover/", s.handleDiscover).Methods(http.MethodPost)
	api.HandleFunc("/lcd/command/", s.handleDisplay).Methods(http.MethodPost)
	api.HandleFunc("/status/", s.handleStatus).Methods(http.MethodGet)
	if deps.Stream != nil {
		s.router.Handle("/ws/sensors/", deps.Stream)
	}
	if deps.Gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "actuator not found"})
		return
	}
	var request entities.CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}
	response, err := s.deps.Dispatcher.Dispatch(r.Context(), id, request)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var request entities.RegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}
	device := entities.DeviceDescriptor{
		Address:      request.Address,
		DeviceClass:  request.DeviceClass,
		DeviceType:   request.DeviceType,
		Capabilities: request.Capabilities,
	}
	response, err := s.deps.Registrar.Register(r.Context(), request.BoardID, device)
	if err != nil {
		s.writeError(w, err)
		return
	}
	status := http.StatusOK
	if response.Created {
		status = http.StatusCreated
	}
	s.writeJSON(w, status, response)
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	var request discoverRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil || request.BoardID == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "baseboard_id is required"})
		return
	}
	if err := s.deps.Publisher.PublishDiscoveryTrigger(request.BoardID); err != nil {
		s.log.Warnf("discovery trigger for %s: %v", request.BoardID, err)
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "broker unavailable"})
		return
	}
	s.writeJSON(w, http.StatusAccepted, discoverResponse{Status: "triggered", Topic: network.DiscoverTopic(request.BoardID)})
}

func (s *Server) handleDisplay(w http.ResponseWriter, r *http.Request) {
	var command network.DisplayCommand
	if err := json.NewDecoder(r.Body).Decode(&command); err != nil || command.Text == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "text is required"})
		return
	}
	if err := s.deps.Publisher.PublishDisplay(command); err != nil {
		s.log.Warnf("display command: %v", err)
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "broker unavailable"})
		return
	}
	s.writeJSON(w, http.StatusAccepted, discoverResponse{Status: "sent", Topic: network.TopicLCD})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	response := statusResponse{Broker: network.StateDisconnected.String()}
	if s.deps.Broker != nil {
		response.Broker = s.deps.Broker.State().String()
	}
	if s.deps.Observers != nil {
		response.Observers = s.deps.Observers.Count()
	}
	if s.deps.Boards != nil {
		boards, err := s.deps.Boards.CountBoards(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		response.Boards = boards
	}
	s.writeJSON(w, http.StatusOK, response)
}

// writeError maps domain errors to status codes. Validation errors carry the
// reason back to the caller; anything unexpected is only logged.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var validation *entities.ValidationError
	switch {
	case errors.As(err, &validation):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: validation.Reason, ValidCommands: validation.ValidCommands})
	case errors.Is(err, store.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, xiot.ErrCommandNotSent):
		s.log.Warn(err)
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "failed to send command"})
	default:
		s.log.Errorf("request failed: %v", err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Debugf("write response: %v", err)
	}
}
