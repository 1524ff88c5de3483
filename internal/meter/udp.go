package meter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/camera-remote/ccb/internal/adapter"
	"github.com/camera-remote/ccb/internal/params"
)

// DefaultPort is the UDP port the camera streams preview packets to.
const DefaultPort = 49199

const maxPacket = 65536

// UDP meters through the camera's preview stream.
type UDP struct {
	channel adapter.Channel
	port    int
	logger  zerolog.Logger

	mu   sync.Mutex
	conn *net.UDPConn
}

// NewUDP returns a meter that listens on port (0 picks a free port) and
// controls the stream through ch.
func NewUDP(ch adapter.Channel, port int, logger zerolog.Logger) *UDP {
	return &UDP{channel: ch, port: port, logger: logger}
}

// LocalAddr returns the bound address while the meter is started.
func (u *UDP) LocalAddr() net.Addr {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.conn == nil {
		return nil
	}
	return u.conn.LocalAddr()
}

// Start binds the socket, then asks the camera to stream to it.
func (u *UDP) Start(ctx context.Context) error {
	u.mu.Lock()
	if u.conn != nil {
		u.mu.Unlock()
		return fmt.Errorf("%w: meter already started", ErrSocket)
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: u.port})
	if err != nil {
		u.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrSocket, err)
	}
	u.conn = conn
	port := conn.LocalAddr().(*net.UDPAddr).Port
	u.mu.Unlock()

	body, err := u.channel.Send(ctx, adapter.NewCommand("startstream", "value", strconv.Itoa(port)))
	if err != nil {
		return err
	}
	if err := adapter.CheckResult(body, "lumix"); err != nil {
		return fmt.Errorf("startstream: %w", err)
	}
	u.logger.Debug().Int("port", port).Msg("metering stream started")
	return nil
}

// ReadSample waits for one stream packet and decodes its metering byte.
func (u *UDP) ReadSample(ctx context.Context, timeout time.Duration) (int, error) {
	u.mu.Lock()
	conn := u.conn
	u.mu.Unlock()
	if conn == nil {
		return 0, fmt.Errorf("%w: meter not started", ErrSocket)
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSocket, err)
	}

	buf := make([]byte, maxPacket)
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return 0, fmt.Errorf("%w: no packet within %s", ErrTimeout, timeout)
		}
		return 0, fmt.Errorf("%w: %v", ErrSocket, err)
	}
	if n <= params.MeteringOffset {
		return 0, fmt.Errorf("%w: packet of %d bytes", ErrInvalidResponse, n)
	}
	sample, err := params.DecodeEV(buf[params.MeteringOffset])
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return sample, nil
}

// Stop closes the socket and stops the camera stream.
func (u *UDP) Stop(ctx context.Context) error {
	u.mu.Lock()
	conn := u.conn
	u.conn = nil
	u.mu.Unlock()

	var closeErr error
	if conn != nil {
		if err := conn.Close(); err != nil {
			closeErr = fmt.Errorf("%w: %v", ErrSocket, err)
		}
	}

	body, err := u.channel.Send(ctx, adapter.NewCommand("stopstream"))
	if err != nil {
		return err
	}
	if err := adapter.CheckResult(body, "lumix"); err != nil {
		return fmt.Errorf("stopstream: %w", err)
	}
	return closeErr
}

var _ Meter = (*UDP)(nil)
