package base

import (
	"errors"
	"io"
	"net"
	"time"

	"github.com/ValentinKolb/sKV/rpc/protocol"
	"github.com/ValentinKolb/sKV/rpc/transport"
)

// handleConnection runs the read → parse → handle → write loop of one connection.
// All queries found in one read are answered with a single write, in arrival order.
func (t *serverTransport) handleConnection(id string, conn net.Conn) {
	defer func() {
		_ = conn.Close()
		t.conns.Delete(id)
		t.release()
		t.wg.Done()
	}()

	Logger.Debugf("Connection %s opened from %s", id, conn.RemoteAddr())

	handler := t.factory(id)
	parser := protocol.NewParser(protocol.MarkerQuery, t.config.MaxQuerySize)

	// Get a read buffer from the pool
	bufPtr := t.bufferPool.Get().(*[]byte)
	defer t.bufferPool.Put(bufPtr)
	buf := *bufPtr

	// Timeout in seconds
	timeout := time.Duration(t.config.TimeoutSecond) * time.Second

	var out []byte
	for {
		if timeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
				Logger.Errorf("Connection %s: failed to set read deadline: %v", id, err)
				return
			}
		}

		n, readErr := conn.Read(buf)
		if n > 0 {
			parser.Feed(buf[:n])

			var closeAfter bool
			out, closeAfter = serveFrames(id, parser, handler, out[:0])
			if len(out) > 0 {
				if timeout > 0 {
					_ = conn.SetWriteDeadline(time.Now().Add(timeout))
				}
				if _, err := conn.Write(out); err != nil {
					Logger.Warningf("Connection %s: failed to write response: %v", id, err)
					return
				}
			}
			if closeAfter {
				return
			}
		}

		if readErr != nil {
			logReadError(id, parser, readErr)
			return
		}
	}
}

// serveFrames answers every complete frame buffered in the parser and appends the
// encoded responses to out. It reports whether the connection must be closed.
func serveFrames(id string, p *protocol.Parser, h transport.IConnHandler, out []byte) ([]byte, bool) {
	for {
		frame, err := p.Next()
		switch {
		case err == nil:
			out = dispatch(h, frame).Append(out)

		case errors.Is(err, protocol.ErrIncomplete):
			return out, false

		case errors.Is(err, protocol.ErrMalformedHeader):
			// framing is lost, the stream cannot be resynchronized
			Logger.Warningf("Connection %s: %v, closing", id, err)
			return protocol.Errorf(protocol.CodeMalformedQuery, "%v", err).Append(out), true

		default:
			// an element failed to decode, the frame itself was consumed
			Logger.Debugf("Connection %s: %v", id, err)
			out = protocol.Errorf(protocol.CodeEncodingError, "%v", err).Append(out)
		}
	}
}

func dispatch(h transport.IConnHandler, frame protocol.Frame) protocol.Response {
	q, err := protocol.ParseQuery(frame)
	if err != nil {
		return protocol.Errorf(protocol.CodeMalformedQuery, "%v", err)
	}
	return h.Handle(q)
}

func logReadError(id string, p *protocol.Parser, err error) {
	var ne net.Error
	switch {
	case errors.Is(err, io.EOF):
		if ferr := p.Finish(); errors.Is(ferr, protocol.ErrUnexpectedEOF) {
			Logger.Warningf("Connection %s closed by client mid-frame (%d bytes buffered): %v", id, p.Buffered(), ferr)
			return
		}
		Logger.Debugf("Connection %s closed by client", id)
	case errors.Is(err, net.ErrClosed):
		Logger.Debugf("Connection %s closed by server", id)
	case errors.As(err, &ne) && ne.Timeout():
		Logger.Infof("Connection %s idle timeout", id)
	default:
		Logger.Warningf("Connection %s read error: %v", id, err)
	}
}
