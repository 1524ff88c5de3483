package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandQueryKeepsOrder(t *testing.T) {
	cmd := SetSetting("whitebalance", "color_temp", "value2", "4000")
	assert.Equal(t, "mode=setsetting&type=whitebalance&value=color_temp&value2=4000", cmd.Query())
	assert.Equal(t, "color_temp", cmd.Get("value"))
	assert.Equal(t, "", cmd.Get("missing"))
}

func TestCommandQueryWritesRationalVerbatim(t *testing.T) {
	cmd := SetSetting("shtrspeed", "-85/256")
	assert.Equal(t, "mode=setsetting&type=shtrspeed&value=-85/256", cmd.Query())
}

func TestCommandHelpers(t *testing.T) {
	assert.Equal(t, "mode=camcmd&value=capture", Camcmd("capture").Query())
	assert.Equal(t, "mode=getsetting&type=iso", GetSetting("iso").Query())
	assert.Equal(t, "mode=getstate", NewCommand("getstate").Query())
	assert.Equal(t, "mode=startstream&value=49199", NewCommand("startstream", "value", "49199").String())
}

func TestChannelFunc(t *testing.T) {
	var got Command
	ch := ChannelFunc(func(ctx context.Context, cmd Command) (string, error) {
		got = cmd
		return "<result>ok</result>", nil
	})

	reply, err := ch.Send(context.Background(), Camcmd("playmode"))
	assert.NoError(t, err)
	assert.Equal(t, "<result>ok</result>", reply)
	assert.Equal(t, "playmode", got.Get("value"))
}
