package rpcsocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// closeFrameDeadline bounds how long writing the outbound close control
// frame may take before the closer gives up on an orderly close.
const closeFrameDeadline = 3 * time.Second

// wsCloser owns the single close request for a session's active phase: it
// awaits either an explicit Close or a Cancel, and on Close writes the
// WebSocket close control frame.
type wsCloser struct {
	conn  *websocket.Conn
	latch *JoinLatch1[CloseReason]
}

func newWsCloser(exec *Executor, conn *websocket.Conn) *wsCloser {
	return &wsCloser{conn: conn, latch: NewJoinLatch1[CloseReason](exec)}
}

// Close requests an orderly close with the given reason.
func (c *wsCloser) Close(reason CloseReason) {
	c.latch.SetEventA(reason)
}

// Cancel aborts the closer without sending a close frame.
func (c *wsCloser) Cancel() {
	c.latch.Cancel(ErrOperationAborted)
}

// run awaits Close or Cancel and returns the resulting error, nil on a
// successful close-frame write.
func (c *wsCloser) run() error {
	waitDone := make(chan error, 1)
	c.latch.AsyncWait(func(err error) { waitDone <- err })
	err := <-waitDone
	if err != nil {
		return err
	}

	reason := c.latch.EventA()
	msg := websocket.FormatCloseMessage(int(reason.Code), reason.Reason)
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeFrameDeadline)); err != nil {
		return NewTransportError(err)
	}
	return nil
}
