package unix

import (
	"github.com/ValentinKolb/rKV/rpc/common"
	"net"
)

// upgradeSocket applies the buffer sizes of cfg to a unix connection
func upgradeSocket(conn net.Conn, cfg common.SocketConfig) error {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return nil
	}
	if cfg.WriteBufferSize > 0 {
		if err := unixConn.SetWriteBuffer(cfg.WriteBufferSize); err != nil {
			return err
		}
	}
	if cfg.ReadBufferSize > 0 {
		if err := unixConn.SetReadBuffer(cfg.ReadBufferSize); err != nil {
			return err
		}
	}
	return nil
}
