package adapter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stateReplyXML = `<?xml version="1.0" encoding="UTF-8"?>
<camrply><result>ok</result><state><batt>2/3</batt><cammode>rec</cammode><remaincapacity>812</remaincapacity><sdcardstatus>write_enable</sdcardstatus><sd_memory>set</sd_memory><video_remaincapacity>2400</video_remaincapacity><rec>off</rec><burst_interval_status>off</burst_interval_status><sd_access>off</sd_access><rem_disp_typ>time</rem_disp_typ><progress_time>0</progress_time><operate>enable</operate><stop_motion_num>0</stop_motion_num><stop_motion>off</stop_motion><temperature>normal</temperature><lens>fixed</lens><add_location_data>off</add_location_data><interval_status>off</interval_status><sdi_state>remain</sdi_state><version>2.1</version></state></camrply>`

func TestResultCode(t *testing.T) {
	assert.Equal(t, "ok", ResultCode(`<camrply><result>ok</result></camrply>`))
	assert.Equal(t, "err_busy", ResultCode(`<camrply><result>err_busy</result></camrply>`))
	assert.Equal(t, "", ResultCode(`not xml`))
}

func TestCheckResult(t *testing.T) {
	assert.NoError(t, CheckResult(`<camrply><result>ok</result></camrply>`, "lumix"))

	err := CheckResult(`<camrply><result>err_reject</result></camrply>`, "lumix")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))

	err = CheckResult(`garbage`, "lumix")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInternal))
}

func TestParseSetting(t *testing.T) {
	body := `<?xml version="1.0" encoding="UTF-8"?>
<camrply><result>ok</result><settingvalue shtrspeed="2048/256"></settingvalue></camrply>`
	v, err := ParseSetting(body, "shtrspeed")
	require.NoError(t, err)
	assert.Equal(t, "2048/256", v)

	n, err := ParseRational(v)
	require.NoError(t, err)
	assert.Equal(t, 2048, n)

	_, err = ParseSetting(body, "iso")
	assert.ErrorIs(t, err, ErrMalformedReply)

	_, err = ParseSetting(`<camrply><result>ok</result></camrply>`, "iso")
	assert.ErrorIs(t, err, ErrMalformedReply)
}

func TestParseRational(t *testing.T) {
	n, err := ParseRational("-85/256")
	require.NoError(t, err)
	assert.Equal(t, -85, n)

	n, err = ParseRational("1024/256/512")
	require.NoError(t, err)
	assert.Equal(t, 1024, n)

	n, err = ParseRational("200")
	require.NoError(t, err)
	assert.Equal(t, 200, n)

	_, err = ParseRational("auto")
	assert.ErrorIs(t, err, ErrMalformedReply)
}

func TestParseCameraStatus(t *testing.T) {
	status, err := ParseCameraStatus(stateReplyXML)
	require.NoError(t, err)
	assert.Equal(t, "2/3", status.Battery)
	assert.Equal(t, "rec", status.CamMode)
	assert.Equal(t, 812, status.RemainCapacity)
	assert.Equal(t, "normal", status.Temperature)
	assert.Equal(t, "2.1", status.Version)

	_, err = ParseCameraStatus(`<camrply><result>err_busy</result></camrply>`)
	assert.ErrorIs(t, err, ErrBusy)
}

func TestParseContentCount(t *testing.T) {
	n, err := ParseContentCount(`<camrply><result>ok</result><current_position>0</current_position><content_number>563</content_number></camrply>`)
	require.NoError(t, err)
	assert.Equal(t, 563, n)

	_, err = ParseContentCount(`<camrply><result>ok</result></camrply>`)
	assert.ErrorIs(t, err, ErrMalformedReply)
}
