package adapter

import (
	"context"
	"strings"
)

// Arg is one key/value pair of a camera command.
type Arg struct {
	Key   string
	Value string
}

// Command is a single cam.cgi request. Mode becomes the leading "mode=" pair.
type Command struct {
	Mode string
	Args []Arg
}

// NewCommand builds a command from alternating key/value strings.
func NewCommand(mode string, kv ...string) Command {
	cmd := Command{Mode: mode}
	for i := 0; i+1 < len(kv); i += 2 {
		cmd.Args = append(cmd.Args, Arg{Key: kv[i], Value: kv[i+1]})
	}
	return cmd
}

// Camcmd builds a "mode=camcmd&value=<value>" command.
func Camcmd(value string) Command {
	return NewCommand("camcmd", "value", value)
}

// SetSetting builds a "mode=setsetting&type=<type>&value=<value>" command.
func SetSetting(kind, value string, extra ...string) Command {
	return NewCommand("setsetting", append([]string{"type", kind, "value", value}, extra...)...)
}

// GetSetting builds a "mode=getsetting&type=<type>" command.
func GetSetting(kind string) Command {
	return NewCommand("getsetting", "type", kind)
}

// Query renders the command as a query string, preserving argument order.
// Values are written verbatim; the camera does not decode escapes such as %2F.
func (c Command) Query() string {
	var b strings.Builder
	b.WriteString("mode=")
	b.WriteString(c.Mode)
	for _, a := range c.Args {
		b.WriteByte('&')
		b.WriteString(a.Key)
		b.WriteByte('=')
		b.WriteString(a.Value)
	}
	return b.String()
}

// Get returns the value of the first argument named key.
func (c Command) Get(key string) string {
	for _, a := range c.Args {
		if a.Key == key {
			return a.Value
		}
	}
	return ""
}

func (c Command) String() string {
	return c.Query()
}

// Channel sends commands to a camera.
type Channel interface {
	// Send issues cmd and returns the reply body. Failures are
	// *ChannelError values wrapping ErrNetwork or ErrTimeout.
	Send(ctx context.Context, cmd Command) (string, error)
}

// ChannelFunc adapts a function to the Channel interface.
type ChannelFunc func(ctx context.Context, cmd Command) (string, error)

// Send calls f.
func (f ChannelFunc) Send(ctx context.Context, cmd Command) (string, error) {
	return f(ctx, cmd)
}
