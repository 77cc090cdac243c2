package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHappyPath(t *testing.T) {
	doc := `
[[inputs]]
id = "roon_main"
kind = "alsa"
device = "hw:Loopback,1"

[[outputs]]
id = "living_room"
kind = "sonos"
room = "Living Room"
buffer_sec = 5

[[routes]]
input = "roon_main"
outputs = ["living_room"]
`
	cfg, err := ParseString(doc)
	require.NoError(t, err)
	require.Len(t, cfg.Inputs, 1)
	assert.Equal(t, "roon_main", cfg.Inputs[0].ID)
	assert.Equal(t, InputAlsa, cfg.Inputs[0].Kind)
	assert.Equal(t, "hw:Loopback,1", cfg.Inputs[0].Device)

	require.Len(t, cfg.Outputs, 1)
	assert.Equal(t, "living_room", cfg.Outputs[0].ID)
	assert.Equal(t, "Living Room", cfg.Outputs[0].Room)
	assert.EqualValues(t, 5, cfg.Outputs[0].BufferSec)

	require.Len(t, cfg.Routes, 1)
	assert.Equal(t, "roon_main", cfg.Routes[0].Input)
	assert.Equal(t, []string{"living_room"}, cfg.Routes[0].Outputs)
}

func TestParseUnknownInputKind(t *testing.T) {
	doc := `
[[inputs]]
id = "invalid"
kind = "invalid_kind"
`
	_, err := ParseString(doc)
	require.Error(t, err)
	var cfgErr *Error
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "unknown_input_kind", cfgErr.Kind)
	assert.Equal(t, "invalid_kind", cfgErr.Detail)
}

func TestParseDuplicateID(t *testing.T) {
	doc := `
[[inputs]]
id = "duplicate"
kind = "silence"

[[inputs]]
id = "duplicate"
kind = "silence"
`
	_, err := ParseString(doc)
	require.Error(t, err)
	var cfgErr *Error
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "duplicate_id", cfgErr.Kind)
	assert.Equal(t, "duplicate", cfgErr.Detail)
}

func TestParseDanglingReference(t *testing.T) {
	doc := `
[[inputs]]
id = "input1"
kind = "silence"

[[outputs]]
id = "output1"
kind = "sonos"
room = "Kitchen"

[[routes]]
input = "nope"
outputs = ["output1"]
`
	_, err := ParseString(doc)
	require.Error(t, err)
	var cfgErr *Error
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "id_not_found", cfgErr.Kind)
	assert.Equal(t, "nope", cfgErr.Detail)
}

func TestParseSonosRequiresRoom(t *testing.T) {
	doc := `
[[outputs]]
id = "out1"
kind = "sonos"
`
	_, err := ParseString(doc)
	require.Error(t, err)
	var cfgErr *Error
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "invalid_field", cfgErr.Kind)
}

func TestDefaultBitrate(t *testing.T) {
	cfg, err := ParseString("")
	require.NoError(t, err)
	assert.Equal(t, 128, cfg.Bitrate)
}
