// Package fake provides an in-memory camera for tests and simulation.
//
// Camera answers cam.cgi commands the way the firmware does: XML replies
// with a <result> code, settingvalue attributes for getsetting, and a
// <state> block for getstate. It can be used directly as an
// adapter.Channel or served over HTTP as a stand-in device.
package fake

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/camera-remote/ccb/internal/adapter"
)

// Fault modes accepted by SetFault.
const (
	FaultNone    = ""
	FaultBusy    = "ReturnBusy"
	FaultReject  = "ReturnReject"
	FaultNetwork = "ReturnNetworkError"
	FaultTimeout = "ReturnTimeout"
)

const replyHeader = `<?xml version="1.0" encoding="UTF-8"?>` + "\r\n"

// Camera implements adapter.Channel against in-memory state.
type Camera struct {
	mu sync.Mutex

	mode         string // "rec" or "play"
	shutter      string // raw "<n>/256"
	focal        string
	iso          string
	whiteBalance string
	driveMode    string
	streaming    bool
	contents     int
	captures     int
	cancels      int

	// faults maps a command mode (or "*" for all) to a fault mode.
	faults map[string]string

	commands []adapter.Command
}

// NewCamera returns a camera in play mode at 1/250, f/3.2, ISO 200.
func NewCamera() *Camera {
	return &Camera{
		mode:         "play",
		shutter:      "2048/256",
		focal:        "853/256",
		iso:          "200",
		whiteBalance: "4000",
		driveMode:    "normal",
		contents:     562,
		faults:       make(map[string]string),
	}
}

// Send implements adapter.Channel.
func (c *Camera) Send(ctx context.Context, cmd adapter.Command) (string, error) {
	select {
	case <-ctx.Done():
		return "", adapter.NewChannelError(cmd, ctx.Err())
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.commands = append(c.commands, cmd)

	switch c.faultFor(cmd.Mode) {
	case FaultNetwork:
		return "", adapter.NewChannelError(cmd, errors.New("simulated connection refused"))
	case FaultTimeout:
		return "", adapter.NewChannelError(cmd, context.DeadlineExceeded)
	case FaultBusy:
		return reply("err_busy", ""), nil
	case FaultReject:
		return reply("err_reject", ""), nil
	}

	return c.handle(cmd), nil
}

func (c *Camera) faultFor(mode string) string {
	if f, ok := c.faults[mode]; ok {
		return f
	}
	return c.faults["*"]
}

func (c *Camera) handle(cmd adapter.Command) string {
	switch cmd.Mode {
	case "camcmd":
		return c.handleCamcmd(cmd.Get("value"))
	case "getsetting":
		return c.handleGetSetting(cmd.Get("type"))
	case "setsetting":
		return c.handleSetSetting(cmd)
	case "getstate":
		return reply("ok", c.stateXML())
	case "get_content_info":
		return reply("ok", fmt.Sprintf("<current_position>0</current_position><content_number>%d</content_number>", c.contents))
	case "startstream":
		c.streaming = true
		return reply("ok", "")
	case "stopstream":
		c.streaming = false
		return reply("ok", "")
	default:
		return reply("err_non_support", "")
	}
}

func (c *Camera) handleCamcmd(value string) string {
	switch value {
	case "recmode":
		c.mode = "rec"
	case "playmode":
		c.mode = "play"
	case "capture":
		if c.mode != "rec" {
			return reply("err_reject", "")
		}
		c.captures++
		c.contents++
	case "capture_cancel":
		c.cancels++
	default:
		return reply("err_non_support", "")
	}
	return reply("ok", "")
}

func (c *Camera) handleGetSetting(kind string) string {
	var value string
	switch kind {
	case "shtrspeed":
		value = c.shutter
	case "focal":
		value = c.focal
	case "iso":
		value = c.iso
	case "whitebalance":
		value = c.whiteBalance
	case "drivemode":
		value = c.driveMode
	default:
		return reply("err_non_support", "")
	}
	return reply("ok", fmt.Sprintf(`<settingvalue %s="%s"></settingvalue>`, kind, value))
}

func (c *Camera) handleSetSetting(cmd adapter.Command) string {
	value := cmd.Get("value")
	if value == "" {
		return reply("err_param", "")
	}
	switch cmd.Get("type") {
	case "shtrspeed":
		c.shutter = value
	case "focal":
		c.focal = value
	case "iso":
		if _, err := strconv.Atoi(value); err != nil {
			return reply("err_param", "")
		}
		c.iso = value
	case "whitebalance":
		if value != "color_temp" {
			c.whiteBalance = value
			break
		}
		if _, err := strconv.Atoi(cmd.Get("value2")); err != nil {
			return reply("err_param", "")
		}
		c.whiteBalance = cmd.Get("value2")
	case "drivemode":
		if value != "normal" && value != "burst" {
			return reply("err_param", "")
		}
		c.driveMode = value
	default:
		return reply("err_non_support", "")
	}
	return reply("ok", "")
}

func (c *Camera) stateXML() string {
	return fmt.Sprintf("<state><batt>3/3</batt><cammode>%s</cammode><remaincapacity>%d</remaincapacity>"+
		"<sdcardstatus>write_enable</sdcardstatus><sd_memory>set</sd_memory><rec>off</rec>"+
		"<temperature>normal</temperature><lens>fixed</lens><version>fake-1.0</version></state>",
		c.mode, 9999-c.contents)
}

func reply(result, body string) string {
	return replyHeader + "<camrply><result>" + result + "</result>" + body + "</camrply>"
}

// ServeHTTP answers GET /cam.cgi requests, so the camera can back a
// lumix.Channel in tests and simulation.
func (c *Camera) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/cam.cgi" {
		http.NotFound(w, r)
		return
	}
	cmd, err := parseQuery(r.URL.RawQuery)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	body, err := c.Send(r.Context(), cmd)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	_, _ = w.Write([]byte(body))
}

// parseQuery rebuilds a Command from a raw query string, keeping order.
func parseQuery(raw string) (adapter.Command, error) {
	var cmd adapter.Command
	for i, pair := range strings.Split(raw, "&") {
		key, value, _ := strings.Cut(pair, "=")
		if i == 0 {
			if key != "mode" {
				return cmd, fmt.Errorf("query must start with mode=, got %q", key)
			}
			cmd.Mode = value
			continue
		}
		cmd.Args = append(cmd.Args, adapter.Arg{Key: key, Value: value})
	}
	return cmd, nil
}

// SetFault injects a fault for a command mode; "*" applies to every mode.
func (c *Camera) SetFault(mode, fault string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fault == FaultNone {
		delete(c.faults, mode)
		return
	}
	c.faults[mode] = fault
}

// ClearFaults removes all injected faults.
func (c *Camera) ClearFaults() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.faults = make(map[string]string)
}

// Commands returns a copy of the command log.
func (c *Camera) Commands() []adapter.Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]adapter.Command, len(c.commands))
	copy(out, c.commands)
	return out
}

// Queries returns the command log rendered as query strings.
func (c *Camera) Queries() []string {
	cmds := c.Commands()
	out := make([]string, len(cmds))
	for i, cmd := range cmds {
		out[i] = cmd.Query()
	}
	return out
}

// CountMode returns how many commands with the given mode were sent.
func (c *Camera) CountMode(mode string) int {
	n := 0
	for _, cmd := range c.Commands() {
		if cmd.Mode == mode {
			n++
		}
	}
	return n
}

// ResetCommands clears the command log.
func (c *Camera) ResetCommands() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands = nil
}

// SetShutterRaw sets the value getsetting shtrspeed reports.
func (c *Camera) SetShutterRaw(v string) { c.set(&c.shutter, v) }

// SetFocalRaw sets the value getsetting focal reports.
func (c *Camera) SetFocalRaw(v string) { c.set(&c.focal, v) }

// SetISORaw sets the value getsetting iso reports.
func (c *Camera) SetISORaw(v string) { c.set(&c.iso, v) }

func (c *Camera) set(field *string, v string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	*field = v
}

// Mode returns "rec" or "play".
func (c *Camera) Mode() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Captures returns the number of accepted capture commands.
func (c *Camera) Captures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.captures
}

// Cancels returns the number of capture_cancel commands.
func (c *Camera) Cancels() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancels
}

// Streaming reports whether a live stream is active.
func (c *Camera) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streaming
}

// Setting returns the stored raw value of a setting type.
func (c *Camera) Setting(kind string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch kind {
	case "shtrspeed":
		return c.shutter
	case "focal":
		return c.focal
	case "iso":
		return c.iso
	case "whitebalance":
		return c.whiteBalance
	case "drivemode":
		return c.driveMode
	}
	return ""
}

var _ adapter.Channel = (*Camera)(nil)
