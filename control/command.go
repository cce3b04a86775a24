package control

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tsawler/metricate/settings"
)

var (
	// ErrInvalidSetting reports a setting value that is not a boolean. The
	// field is ignored and the rest of the command still applies.
	ErrInvalidSetting = errors.New("invalid setting")

	// ErrUnknownCommand reports an unrecognised action.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrMalformedCommand reports a payload that is not a JSON object.
	ErrMalformedCommand = errors.New("malformed command")
)

// Action names a command.
type Action string

// Recognised actions. Toggle and Convert are the primary wire actions; the
// others are shorthands and transport extensions.
const (
	ActionToggle          Action = "toggle"
	ActionConvert         Action = "convert"
	ActionEnable          Action = "enable"
	ActionDisable         Action = "disable"
	ActionSetRoundingMode Action = "set-rounding-mode"
	ActionRescan          Action = "rescan"
	ActionAppend          Action = "append"
	ActionStatus          Action = "status"
)

// Command is a decoded control command.
type Command struct {
	Action Action
	Patch  settings.Patch
	HTML   string // fragment for ActionAppend
}

// Response is the reply to a command. NewSettings is set for commands that
// change state, AppliedSettings for commands that only act under it.
type Response struct {
	Success         bool               `json:"success"`
	NewSettings     *settings.Settings `json:"newSettings,omitempty"`
	AppliedSettings *settings.Settings `json:"appliedSettings,omitempty"`
	Error           string             `json:"error,omitempty"`
	Converted       int                `json:"converted,omitempty"`
	Reverted        int                `json:"reverted,omitempty"`
	Warnings        []string           `json:"warnings,omitempty"`
}

// Encode renders the response as JSON.
func (r Response) Encode() []byte {
	data, err := json.Marshal(r)
	if err != nil {
		// Response holds only strings, ints and bools.
		return []byte(`{"success":false,"error":"encode response"}`)
	}
	return data
}

// DecodeResponse parses a wire response.
func DecodeResponse(data []byte) (Response, error) {
	var r Response
	if err := json.Unmarshal(data, &r); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}
	return r, nil
}

type wireCommand struct {
	Action   string                     `json:"action"`
	Settings map[string]json.RawMessage `json:"settings"`
	Enabled  json.RawMessage            `json:"enabled"`
	HTML     string                     `json:"html"`
}

// Decode parses the wire form of a command. Non-boolean setting values are
// dropped from the patch and reported in the returned slice, each wrapping
// ErrInvalidSetting. A top-level "enabled" field is accepted for toggle
// when settings.enabled is absent.
func Decode(data []byte) (Command, []error, error) {
	var w wireCommand
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&w); err != nil {
		return Command{}, nil, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}

	cmd := Command{Action: Action(w.Action), HTML: w.HTML}
	var invalid []error

	field := func(key string, raw json.RawMessage) *bool {
		v, err := parseBool(key, raw)
		if err != nil {
			invalid = append(invalid, err)
		}
		return v
	}
	cmd.Patch.Enabled = field(settings.KeyEnabled, w.Settings[settings.KeyEnabled])
	cmd.Patch.SmartRounding = field(settings.KeySmartRounding, w.Settings[settings.KeySmartRounding])
	if cmd.Patch.Enabled == nil && len(w.Enabled) > 0 {
		cmd.Patch.Enabled = field(settings.KeyEnabled, w.Enabled)
	}
	return cmd, invalid, nil
}

// Encode renders the wire form of a command.
func (c Command) Encode() ([]byte, error) {
	w := struct {
		Action   Action          `json:"action"`
		Settings *settings.Patch `json:"settings,omitempty"`
		HTML     string          `json:"html,omitempty"`
	}{Action: c.Action, HTML: c.HTML}
	if !c.Patch.Empty() {
		w.Settings = &c.Patch
	}
	return json.Marshal(w)
}

// parseBool reads a JSON boolean. Absent and null values yield nil.
func parseBool(key string, raw json.RawMessage) (*bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: %s = %s", ErrInvalidSetting, key, raw)
	}
	return &v, nil
}
