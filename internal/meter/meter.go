package meter

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds a single sample read.
const DefaultTimeout = 4 * time.Second

// Meter errors.
var (
	ErrTimeout         = errors.New("meter timeout")
	ErrSocket          = errors.New("meter socket error")
	ErrInvalidResponse = errors.New("meter invalid response")
)

// Meter is the live metering collaborator.
//
// Stop must be called exactly once after every Start, whether Start,
// ReadSample or neither failed.
type Meter interface {
	Start(ctx context.Context) error
	ReadSample(ctx context.Context, timeout time.Duration) (int, error)
	Stop(ctx context.Context) error
}

// Measure runs one start/read/stop cycle and returns the sample in
// third-stops. A stop failure is logged and never replaces the outcome.
func Measure(ctx context.Context, m Meter, timeout time.Duration, log zerolog.Logger) (sample int, err error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	defer func() {
		// The stream may be running even when the read failed, so the
		// stop gets its own context.
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		if stopErr := m.Stop(stopCtx); stopErr != nil {
			log.Warn().Err(stopErr).Msg("failed to stop metering stream")
		}
	}()

	if err := m.Start(ctx); err != nil {
		return 0, err
	}
	sample, err = m.ReadSample(ctx, timeout)
	if err != nil {
		return 0, err
	}
	log.Debug().Int("sample", sample).Msg("metering sample")
	return sample, nil
}
