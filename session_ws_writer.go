package rpcsocket

import (
	"github.com/gorilla/websocket"
)

// wsWriter owns the single outbound queue for a session's active phase. It
// loops popping text frames and writing them to conn until the queue is
// stopped or a write fails.
type wsWriter struct {
	conn  *websocket.Conn
	queue *AsyncQueue[string]
}

func newWsWriter(exec *Executor, conn *websocket.Conn) *wsWriter {
	return &wsWriter{conn: conn, queue: NewAsyncQueue[string](exec)}
}

// Send enqueues text for writing. Send after Cancel is a silent no-op.
func (w *wsWriter) Send(text string) {
	w.queue.Push(text)
}

// Cancel stops the writer's queue, unblocking its current or next pop with
// ErrOperationAborted.
func (w *wsWriter) Cancel() {
	w.queue.Stop()
}

// run drains the queue until it reports an error, returning that error. A
// stop triggered by Cancel surfaces as ErrOperationAborted, which the caller
// treats as a clean exit rather than a failure.
func (w *wsWriter) run() error {
	for {
		popDone := make(chan struct{})
		var popErr error
		var text string
		w.queue.AsyncPop(func(err error, v string) {
			popErr = err
			text = v
			close(popDone)
		})
		<-popDone

		if popErr != nil {
			return popErr
		}
		if err := w.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
			return NewTransportError(err)
		}
	}
}
