package ws

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/lectern/internal/room"
)

// wsHandle adapts one accepted websocket connection to [room.Handle].
// wsjson.Write serializes concurrent writers internally, so the handle can
// be driven by the broadcaster, the heartbeat and the ingest loop at once.
type wsHandle struct {
	id   string
	conn *websocket.Conn
}

var _ room.Handle = (*wsHandle)(nil)

func newHandle(conn *websocket.Conn) *wsHandle {
	buf := make([]byte, 8)
	rand.Read(buf)
	return &wsHandle{id: hex.EncodeToString(buf), conn: conn}
}

func (h *wsHandle) ID() string { return h.id }

func (h *wsHandle) Send(ctx context.Context, frame any) error {
	return wsjson.Write(ctx, h.conn, frame)
}
