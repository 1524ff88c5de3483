package remote

import (
	"context"
	"errors"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/camera-remote/ccb/internal/camera"
	"github.com/camera-remote/ccb/internal/exposure"
	"github.com/camera-remote/ccb/internal/metrics"
	"github.com/camera-remote/ccb/internal/protocol"
	"github.com/camera-remote/ccb/internal/telemetry"
	"github.com/camera-remote/ccb/internal/timelapse"
)

const (
	writeTimeout = 5 * time.Second
	outboxSize   = 16
)

// Serve runs one remote session until the peer goes away or ctx ends.
// A normal close from the peer returns nil.
func (b *Bridge) Serve(ctx context.Context, conn *websocket.Conn) error {
	sessionID := uuid.NewString()
	logger := b.logger.With().Str("session", sessionID).Logger()
	logger.Info().Msg("remote session opened")
	metrics.SessionConnected()
	defer metrics.SessionDisconnected()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, detach := b.events.Attach(ctx)
	defer detach()

	outbox := make(chan []byte, outboxSize)
	writeErr := make(chan error, 1)
	go func() {
		writeErr <- b.writeLoop(ctx, conn, events, outbox)
	}()

	err := b.readLoop(ctx, conn, outbox, logger)
	cancel()
	if werr := <-writeErr; err == nil {
		err = werr
	}

	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		err = nil
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err != nil {
		logger.Warn().Err(err).Msg("remote session ended")
		conn.Close(websocket.StatusInternalError, "session error")
		return err
	}
	logger.Info().Msg("remote session closed")
	conn.Close(websocket.StatusNormalClosure, "")
	return nil
}

func (b *Bridge) readLoop(ctx context.Context, conn *websocket.Conn, outbox chan<- []byte, logger zerolog.Logger) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageBinary {
			metrics.RecordProtocolRejected()
			logger.Warn().Int("type", int(typ)).Msg("ignoring non-binary message")
			continue
		}

		cmd, err := protocol.Decode(data)
		if err != nil {
			metrics.RecordProtocolRejected()
			logger.Warn().Err(err).Hex("message", data).Msg("rejected message")
			continue
		}
		metrics.RecordProtocolMessage(cmd.Opcode().String())
		logger.Debug().Str("opcode", cmd.Opcode().String()).Msg("message received")

		if _, ok := cmd.(protocol.Ready); ok {
			for _, pkt := range b.greeting() {
				select {
				case outbox <- pkt:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
		if err := b.Dispatch(cmd); err != nil {
			logger.Warn().Err(err).Str("opcode", cmd.Opcode().String()).Msg("command not queued")
		}
	}
}

// greeting is what a remote receives after READY.
func (b *Bridge) greeting() [][]byte {
	snap := b.ctrl.Snapshot()
	pkts := [][]byte{
		protocol.EncodeState(snap),
		protocol.EncodeAutoExposure(snap.AutoExposure),
	}
	if st := b.Timelapse(); st.Running() {
		pkts = append(pkts, protocol.EncodeTimelapse(st))
	}
	return pkts
}

func (b *Bridge) writeLoop(ctx context.Context, conn *websocket.Conn, events <-chan telemetry.Event, outbox <-chan []byte) error {
	for {
		var pkt []byte
		select {
		case <-ctx.Done():
			return nil
		case pkt = <-outbox:
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			pkt = encodeEvent(ev)
		}
		if pkt == nil {
			continue
		}
		if err := write(ctx, conn, pkt); err != nil {
			return err
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, pkt []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageBinary, pkt)
}

// encodeEvent returns nil for events the remote does not render.
func encodeEvent(ev telemetry.Event) []byte {
	switch p := ev.Payload.(type) {
	case camera.Snapshot:
		return protocol.EncodeState(p)
	case timelapse.State:
		return protocol.EncodeTimelapse(p)
	case exposure.Config:
		return protocol.EncodeAutoExposure(p)
	}
	return nil
}
