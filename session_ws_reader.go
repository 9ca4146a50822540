package rpcsocket

import (
	"github.com/gorilla/websocket"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
)

// wsReader owns the session's inbound read loop.
type wsReader struct {
	conn     *websocket.Conn
	onText   func([]byte)
	onBinary func([]byte)
	logger   zerolog.Logger
	id       xid.ID
}

func newWsReader(conn *websocket.Conn, onText, onBinary func([]byte), logger zerolog.Logger, id xid.ID) *wsReader {
	return &wsReader{conn: conn, onText: onText, onBinary: onBinary, logger: logger, id: id}
}

// run reads frames until the connection closes or errors. A clean close is
// reported as a nil error; anything else is wrapped in a TransportError.
func (r *wsReader) run() error {
	for {
		messageType, data, err := r.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				return nil
			}
			return NewTransportError(err)
		}

		switch messageType {
		case websocket.TextMessage:
			if r.onText != nil {
				r.onText(data)
			}
		case websocket.BinaryMessage:
			if r.onBinary != nil {
				r.onBinary(data)
			}
		default:
			r.logger.Debug().Stringer("id", r.id).Int("type", messageType).Msg("dropped frame: unsupported message type")
		}
	}
}
