package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	gorilla "github.com/gorilla/websocket"

	"github.com/rocketscienceinc/ultimate-tictactoe/internal/entity"
)

const (
	idlePingInterval = 30 * time.Second
	writeTimeout     = 10 * time.Second
)

type matchUseCase interface {
	GetMatch(ctx context.Context, id string) (*entity.Match, error)
}

// Server streams match snapshots to browsers. A client subscribes with ?match=<id> on connect
// or by sending a match:subscribe message.
type Server struct {
	logger   *slog.Logger
	hub      *Hub
	matches  matchUseCase
	upgrader gorilla.Upgrader
}

func New(logger *slog.Logger, hub *Hub, matches matchUseCase) *Server {
	return &Server{
		logger:  logger.With("component", "websocket"),
		hub:     hub,
		matches: matches,
		upgrader: gorilla.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (that *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "ServeHTTP")

	conn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	c := that.hub.register()

	go func() {
		defer conn.Close()

		if err := writeWithHeartbeat(conn, c.send); err != nil {
			log.Debug("websocket writer stopped", "error", err)
		}
	}()

	defer that.hub.unregister(c)

	ctx := r.Context()

	if matchID := r.URL.Query().Get("match"); matchID != "" {
		that.subscribe(ctx, c, matchID)
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.Debug("websocket connection closed", "error", err)
			return
		}

		var message Message
		if err = json.Unmarshal(raw, &message); err != nil {
			that.sendError(c, "invalid message")
			continue
		}

		switch message.Action {
		case actionSubscribe:
			var payload SubscribePayload
			if err = json.Unmarshal(message.Payload, &payload); err != nil || payload.MatchID == "" {
				that.sendError(c, "match_id is required")
				continue
			}

			that.subscribe(ctx, c, payload.MatchID)
		case actionPing:
		default:
			that.sendError(c, "unknown action: "+message.Action)
		}
	}
}

// subscribe - registers the client and sends the current snapshot right away.
func (that *Server) subscribe(ctx context.Context, c *client, matchID string) {
	match, err := that.matches.GetMatch(ctx, matchID)
	if err != nil {
		that.logger.Warn("subscribe to unknown match", "match_id", matchID, "error", err)
		that.sendError(c, "match not found")
		return
	}

	that.hub.subscribe(c, matchID)

	data, err := encode(actionSnapshot, ResponsePayload{Match: match})
	if err != nil {
		that.logger.Error("failed to encode snapshot", "match_id", matchID, "error", err)
		return
	}

	c.enqueue(data)
}

func (that *Server) sendError(c *client, text string) {
	data, err := encode(actionError, ResponsePayload{Error: text})
	if err != nil {
		return
	}

	c.enqueue(data)
}

func writeWithHeartbeat(conn *gorilla.Conn, send <-chan []byte) error {
	ticker := time.NewTicker(idlePingInterval)
	defer ticker.Stop()

	lastWrite := time.Now()
	ping, _ := encode(actionPing, nil)

	for {
		select {
		case data, ok := <-send:
			if !ok {
				_ = conn.WriteControl(gorilla.CloseMessage, gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
				return nil
			}

			if err := write(conn, data); err != nil {
				return err
			}
			lastWrite = time.Now()
		case <-ticker.C:
			if time.Since(lastWrite) < idlePingInterval {
				continue
			}

			if err := write(conn, ping); err != nil {
				return err
			}
			lastWrite = time.Now()
		}
	}
}

func write(conn *gorilla.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}

	return conn.WriteMessage(gorilla.TextMessage, data)
}
