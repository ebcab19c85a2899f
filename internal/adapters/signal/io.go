package signal

import (
	"errors"
	"time"

	"github.com/gorilla/websocket"
)

func (m *Manager) writePump(s *socket) {
	ticker := time.NewTicker(m.cfg.PingPeriod)
	defer ticker.Stop()
	logger := m.logger.With().Uint64("gen", s.gen).Logger()

	for {
		select {
		case <-s.done:
			logger.Debug().Msg("writePump done")
			return
		case data := <-s.send:
			if err := s.conn.SetWriteDeadline(time.Now().Add(m.cfg.WriteWait)); err != nil {
				logger.Error().Err(err).Msg("writePump set deadline")
				_ = s.conn.Close()
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Error().Err(err).Msg("writePump write error")
				_ = s.conn.Close()
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(m.cfg.WriteWait)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				logger.Warn().Err(err).Msg("writePump ping failed")
				_ = s.conn.Close()
				return
			}
		}
	}
}

func (m *Manager) readPump(s *socket) {
	logger := m.logger.With().Uint64("gen", s.gen).Logger()
	pongWait := m.cfg.PingPeriod * 10 / 9

	s.conn.SetReadLimit(m.cfg.ReadLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			logger.Debug().Err(err).Msg("readPump read error")
			m.handleDrop(s, err)
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))

		msg, err := Decode(data)
		if err != nil {
			var de *DecodeError
			if errors.As(err, &de) {
				logger.Warn().Err(de.Err).Int("bytes", len(data)).Msg("dropping undecodable frame")
			}
			continue
		}
		if !msg.Type.Known() {
			logger.Debug().Str("type", string(msg.Type)).Msg("ignoring unknown signal")
		}
		m.dispatch(s, msg)
	}
}
