package signal

import (
	"time"

	"github.com/dkeye/meetrelay/internal/core"
)

const (
	EvHeartbeat     = "heartbeat"
	OutHeartbeatAck = "heartbeat-ack"
)

func (ctl *SignalWSController) handleHeartbeat(sid core.SessionID, conn *WsSignalConn) {
	resp := struct {
		Type      string `json:"type"`
		Timestamp int64  `json:"timestamp"`
	}{
		Type:      OutHeartbeatAck,
		Timestamp: time.Now().UnixMilli(),
	}
	ctl.sendJSON(sid, conn, resp)
}
