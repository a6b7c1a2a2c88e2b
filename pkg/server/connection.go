package server

import (
	"time"

	"github.com/dd0wney/redka/pkg/engine"
	"github.com/dd0wney/redka/pkg/ioruntime"
	"github.com/dd0wney/redka/pkg/logging"
	"github.com/dd0wney/redka/pkg/metrics"
	"github.com/dd0wney/redka/pkg/pools"
	"github.com/dd0wney/redka/pkg/record"
)

// HandleConnection is the detached, self-owned per-connection task the
// accept loop spawns (§4.5, §9): it reads one frame at a time, classifies
// and serves it against eng, and loops until the peer closes or a malformed
// frame forces the connection shut. Its only state lives in the closures it
// captures; nothing is registered with the executor beyond the read/write
// continuations ioruntime.TcpSocket itself manages.
func HandleConnection(sock *ioruntime.TcpSocket, eng *engine.Engine, logger logging.Logger, reg *metrics.Registry) {
	reg.ConnectionOpened()

	buf := pools.GetBytesSized(MaxFrameSize)

	var serve func()
	closeConn := func() {
		pools.PutBytes(buf)
		reg.ConnectionClosed()
		sock.Close()
	}

	serve = func() {
		sock.ReadSome(buf, func(n int, err error) {
			if err != nil {
				logger.Debug("connection read error", logging.Field{Key: "fd", Value: sock.Fd()}, logging.Field{Key: "error", Value: err.Error()})
				closeConn()
				return
			}
			if n == 0 {
				closeConn()
				return
			}

			start := time.Now()
			req := ClassifyRequest(buf[:n])
			resp, keepOpen := handleRequest(eng, req, reg, start)

			sock.WriteAll(resp, func(err error) {
				if err != nil {
					logger.Debug("connection write error", logging.Field{Key: "fd", Value: sock.Fd()}, logging.Field{Key: "error", Value: err.Error()})
					closeConn()
					return
				}
				if !keepOpen {
					closeConn()
					return
				}
				serve()
			})
		})
	}

	serve()
}

// kindLabel names a request kind for metrics, independent of the protocol
// status byte it eventually returns.
func kindLabel(k Kind) string {
	switch k {
	case KindCreate:
		return "create"
	case KindUpdate:
		return "update"
	case KindRead:
		return "read"
	default:
		return "malformed"
	}
}

// handleRequest executes one classified request against eng and encodes its
// response. keepOpen is false only for a malformed frame (§8 scenario 6:
// respond '1' and close).
func handleRequest(eng *engine.Engine, req Request, reg *metrics.Registry, start time.Time) (resp []byte, keepOpen bool) {
	kind := kindLabel(req.Kind)

	switch req.Kind {
	case KindCreate:
		id, err := eng.Create(req.Fields)
		if err != nil {
			reg.RecordRequest(kind, "2", time.Since(start))
			return []byte{StatusErr}, true
		}
		reg.RecordRequest(kind, "ok", time.Since(start))
		return []byte(id), true

	case KindUpdate:
		if err := eng.Update(req.ID, req.Fields); err != nil {
			reg.RecordRequest(kind, "2", time.Since(start))
			return []byte{StatusErr}, true
		}
		reg.RecordRequest(kind, "ok", time.Since(start))
		return []byte(req.ID), true

	case KindRead:
		rec, ok := eng.Read(req.ID)
		if !ok {
			reg.RecordRequest(kind, "0", time.Since(start))
			return []byte{StatusNone}, true
		}
		reg.RecordRequest(kind, "ok", time.Since(start))
		return []byte(record.Serialize(rec)), true

	default:
		reg.RecordRequest(kind, "1", time.Since(start))
		return []byte{StatusBad}, false
	}
}
