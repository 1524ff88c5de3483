package adapter

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ResultOK is the result code of an accepted command.
const ResultOK = "ok"

// CameraStatus is the decoded reply of "mode=getstate".
type CameraStatus struct {
	Battery             string `xml:"batt" json:"batt"`
	CamMode             string `xml:"cammode" json:"cammode"`
	RemainCapacity      int    `xml:"remaincapacity" json:"remaincapacity"`
	SDCardStatus        string `xml:"sdcardstatus" json:"sdcardstatus"`
	SDMemory            string `xml:"sd_memory" json:"sd_memory"`
	VideoRemainCapacity int    `xml:"video_remaincapacity" json:"video_remaincapacity"`
	Rec                 string `xml:"rec" json:"rec"`
	BurstIntervalStatus string `xml:"burst_interval_status" json:"burst_interval_status"`
	SDAccess            string `xml:"sd_access" json:"sd_access"`
	RemDispType         string `xml:"rem_disp_typ" json:"rem_disp_typ"`
	ProgressTime        string `xml:"progress_time" json:"progress_time"`
	Operate             string `xml:"operate" json:"operate"`
	StopMotionNum       int    `xml:"stop_motion_num" json:"stop_motion_num"`
	StopMotion          string `xml:"stop_motion" json:"stop_motion"`
	Temperature         string `xml:"temperature" json:"temperature"`
	Lens                string `xml:"lens" json:"lens"`
	AddLocationData     string `xml:"add_location_data" json:"add_location_data"`
	IntervalStatus      string `xml:"interval_status" json:"interval_status"`
	SDIState            string `xml:"sdi_state" json:"sdi_state"`
	SD2CardStatus       string `xml:"sd2_cardstatus" json:"sd2_cardstatus"`
	SD2Memory           string `xml:"sd2_memory" json:"sd2_memory"`
	SD2Access           string `xml:"sd2_access" json:"sd2_access"`
	CurrentSD           string `xml:"current_sd" json:"current_sd"`
	BackupMode          string `xml:"backupmode" json:"backupmode"`
	BattGrip            string `xml:"batt_grip" json:"batt_grip"`
	WarnDisp            string `xml:"warn_disp" json:"warn_disp"`
	Version             string `xml:"version" json:"version"`
}

type stateReply struct {
	Result string       `xml:"result"`
	State  CameraStatus `xml:"state"`
}

// ErrMalformedReply reports a reply that is not the expected XML.
var ErrMalformedReply = errors.New("malformed camera reply")

// ResultCode returns the text of the <result> element, or "" when absent.
func ResultCode(body string) string {
	text, _ := ElementText(body, "result")
	return strings.TrimSpace(text)
}

// CheckResult returns nil when the reply result is "ok", otherwise the
// result token normalized through the vendor table.
func CheckResult(body, vendorID string) error {
	code := ResultCode(body)
	if code == ResultOK {
		return nil
	}
	if code == "" {
		code = "no result"
	}
	return NormalizeVendorErrorWithVendor(errors.New(code), body, vendorID)
}

// ElementText returns the character data of the first element named name.
func ElementText(body, name string) (string, bool) {
	dec := xml.NewDecoder(strings.NewReader(body))
	dec.Strict = false
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", false
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != name {
			continue
		}
		var text string
		if err := dec.DecodeElement(&text, &start); err != nil {
			return "", false
		}
		return text, true
	}
}

// ParseSetting returns the attribute key of the <settingvalue> element.
func ParseSetting(body, key string) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(body))
	dec.Strict = false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return "", fmt.Errorf("%w: no settingvalue %q", ErrMalformedReply, key)
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedReply, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "settingvalue" {
			continue
		}
		for _, attr := range start.Attr {
			if attr.Name.Local == key {
				return attr.Value, nil
			}
		}
		return "", fmt.Errorf("%w: settingvalue has no %q attribute", ErrMalformedReply, key)
	}
}

// ParseRational returns the numerator of a "<n>/256" style value.
func ParseRational(value string) (int, error) {
	num, _, _ := strings.Cut(strings.TrimSpace(value), "/")
	n, err := strconv.Atoi(num)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a rational value", ErrMalformedReply, value)
	}
	return n, nil
}

// ParseCameraStatus decodes a getstate reply.
func ParseCameraStatus(body string) (*CameraStatus, error) {
	var reply stateReply
	dec := xml.NewDecoder(strings.NewReader(body))
	dec.Strict = false
	if err := dec.Decode(&reply); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	if reply.Result != ResultOK {
		return nil, CheckResult(body, "lumix")
	}
	return &reply.State, nil
}

// ParseContentCount reads <content_number> from a get_content_info reply.
func ParseContentCount(body string) (int, error) {
	text, ok := ElementText(body, "content_number")
	if !ok {
		return 0, fmt.Errorf("%w: no content_number", ErrMalformedReply)
	}
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, fmt.Errorf("%w: content_number %q", ErrMalformedReply, text)
	}
	return n, nil
}
