package render

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"pursuit-rl-go/internal/engine"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// EpisodeSource plays one episode on demand.
type EpisodeSource func(ctx context.Context) (engine.Episode, error)

// StreamMessage is one websocket message. The first message of a connection
// has type "maze"; every later one is a "frame" or an "episode" summary.
type StreamMessage struct {
	Type    string        `json:"type"`
	Episode int           `json:"episode,omitempty"`
	Rows    []string      `json:"rows,omitempty"`
	Frame   *engine.Frame `json:"frame,omitempty"`
	Reward  float64       `json:"reward,omitempty"`
	Status  string        `json:"status,omitempty"`
}

// StreamHandler upgrades to a websocket and streams rollouts from source until
// the client goes away. Frames are paced delay apart.
func StreamHandler(maze *engine.GridMaze, source EpisodeSource, delay time.Duration, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		go readPump(conn, cancel)

		s := &streamer{conn: conn, ticker: time.NewTicker(pingPeriod), logger: logger}
		defer s.ticker.Stop()

		if err := s.send(StreamMessage{Type: "maze", Rows: strings.Split(maze.String(), "\n")}); err != nil {
			return
		}
		for episode := 1; ; episode++ {
			ep, err := source(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logger.Error().Err(err).Msg("rollout for stream failed")
				}
				s.close()
				return
			}
			for i := range ep.Frames {
				if err := s.send(StreamMessage{Type: "frame", Episode: episode, Frame: &ep.Frames[i]}); err != nil {
					return
				}
				if !s.wait(ctx, delay) {
					return
				}
			}
			if err := s.send(StreamMessage{Type: "episode", Episode: episode, Reward: ep.Reward, Status: ep.Status.String()}); err != nil {
				return
			}
		}
	})
}

type streamer struct {
	conn   *websocket.Conn
	ticker *time.Ticker
	logger zerolog.Logger
}

func (s *streamer) send(msg StreamMessage) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		s.logger.Warn().Err(err).Msg("failed to set write deadline")
	}
	if err := s.conn.WriteJSON(msg); err != nil {
		s.logger.Debug().Err(err).Msg("write json message failed")
		return err
	}
	return nil
}

// wait sleeps for delay while keeping the connection alive with pings.
func (s *streamer) wait(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			s.close()
			return false
		case <-timer.C:
			return true
		case <-s.ticker.C:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				s.logger.Warn().Err(err).Msg("failed to set ping write deadline")
			}
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Debug().Err(err).Msg("ping failed")
				return false
			}
		}
	}
}

func (s *streamer) close() {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		s.logger.Debug().Err(err).Msg("write close message failed")
	}
}

// readPump discards client messages and cancels the stream once the peer is gone.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
