package broadcast

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/entities"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
	evictedReason  = "observer too slow"
)

// WebsocketObserver adapts a websocket connection to the Observer interface.
type WebsocketObserver struct {
	conn *websocket.Conn
}

func NewWebsocketObserver(conn *websocket.Conn) *WebsocketObserver {
	return &WebsocketObserver{conn: conn}
}

func (w *WebsocketObserver) Send(message entities.ObserverMessage) error {
	if err := w.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return w.conn.WriteJSON(message)
}

// Close sends a policy-violation close frame and closes the connection,
// which ends the read loop in Serve.
func (w *WebsocketObserver) Close() error {
	frame := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, evictedReason)
	_ = w.conn.WriteControl(websocket.CloseMessage, frame, time.Now().Add(writeWait))
	return w.conn.Close()
}

// Serve joins the observer to bridge and reads its control messages until
// the connection closes. Only ping has an effect; other kinds and malformed
// frames are ignored.
func Serve(bridge *Bridge, conn *websocket.Conn, log *logrus.Entry) {
	observer := NewWebsocketObserver(conn)
	bridge.Join(observer)
	defer func() {
		bridge.Leave(observer)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debugf("observer read: %v", err)
			}
			return
		}
		var message entities.ObserverMessage
		if err := json.Unmarshal(data, &message); err != nil {
			continue
		}
		if message.Type == entities.KindPing {
			bridge.Pong(observer)
		}
	}
}

// Handler upgrades HTTP requests to websocket observers of bridge.
type Handler struct {
	bridge   *Bridge
	log      *logrus.Entry
	upgrader websocket.Upgrader
}

func NewHandler(bridge *Bridge, log *logrus.Entry) *Handler {
	return &Handler{
		bridge: bridge,
		log:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debugf("websocket upgrade: %v", err)
		return
	}
	Serve(h.bridge, conn, h.log)
}
