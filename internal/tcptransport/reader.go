package tcptransport

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/kstaniek/go-openlcb-link/internal/canbus"
	"github.com/kstaniek/go-openlcb-link/internal/gridconnect"
	"github.com/kstaniek/go-openlcb-link/internal/hub"
	"github.com/kstaniek/go-openlcb-link/internal/metrics"
	"github.com/kstaniek/go-openlcb-link/internal/serialtransport"
	"github.com/kstaniek/go-openlcb-link/internal/socketcantransport"
)

func (s *Server) startReader(ctxDone <-chan struct{}, conn net.Conn, cl *hub.Client, logger *slog.Logger) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { _ = conn.Close() }()
		var dec gridconnect.Decoder
		buf := make([]byte, 512)
		for {
			_ = conn.SetReadDeadline(time.Now().Add(s.readDeadline))
			n, err := conn.Read(buf)
			if n > 0 {
				dec.Write(buf[:n])
				for {
					fr, ok := dec.Next()
					if !ok {
						break
					}
					s.handleInbound(fr, logger)
				}
			}
			if err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
					return
				}
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					continue
				}
				wrap := fmt.Errorf("%w: %v", ErrConnRead, err)
				metrics.IncError(mapErrToMetric(wrap))
				s.setError(wrap)
				return
			}
			select {
			case <-ctxDone:
				return
			default:
			}
		}
	}()
}

func (s *Server) handleInbound(fr canbus.Frame, logger *slog.Logger) {
	if s.frameFilter != nil && !s.frameFilter(&fr) {
		return
	}
	metrics.IncTCPRx()
	if err := s.Send(fr); err != nil {
		if errors.Is(err, serialtransport.ErrTxOverflow) || errors.Is(err, socketcantransport.ErrTxOverflow) {
			s.totalBackendOverflow.Add(1)
			logger.Debug("backend_overflow_drop", "header", fmt.Sprintf("0x%X", fr.Header))
		} else {
			wrap := fmt.Errorf("%w: %v", ErrBackendTx, err)
			s.setError(wrap)
			s.totalBackendErrors.Add(1)
			logger.Error("backend_tx_error", "error", wrap, "header", fmt.Sprintf("0x%X", fr.Header))
		}
	}
}
