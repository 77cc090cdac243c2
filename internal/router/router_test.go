package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivugurura/sonos-mux/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Inputs: []config.Input{
			{ID: "silence1", Kind: config.InputSilence},
			{ID: "silence2", Kind: config.InputSilence},
		},
		Outputs: []config.Output{
			{ID: "output1", Kind: config.OutputSonos, Room: "Living Room"},
			{ID: "output2", Kind: config.OutputSonos, Room: "Bedroom"},
		},
		Routes: []config.Route{
			{Input: "silence1", Outputs: []string{"output1"}, GainDB: 0},
			{Input: "silence2", Outputs: []string{"output1", "output2"}, GainDB: -6, DuckDB: 12},
		},
		Bitrate: 128,
	}
}

func TestBuildCreatesOneMixerPerRoutedOutput(t *testing.T) {
	g, err := Build(testConfig(), nil, nil)
	require.NoError(t, err)
	require.Len(t, g.Outputs, 2)

	assert.Len(t, g.Outputs["output1"].Mixer.Sources, 2)
	assert.Len(t, g.Outputs["output2"].Mixer.Sources, 1)
}

func TestBuildSkipsOutputsWithNoRoutes(t *testing.T) {
	cfg := testConfig()
	cfg.Outputs = append(cfg.Outputs, config.Output{ID: "unrouted", Kind: config.OutputSonos, Room: "Office"})

	g, err := Build(cfg, nil, nil)
	require.NoError(t, err)
	_, ok := g.Outputs["unrouted"]
	assert.False(t, ok)
}

func TestBuildFirstRouteWinsOnDuplicateInputOutputPair(t *testing.T) {
	cfg := &config.Config{
		Inputs: []config.Input{{ID: "in1", Kind: config.InputSilence}},
		Outputs: []config.Output{
			{ID: "out1", Kind: config.OutputSonos, Room: "Kitchen"},
		},
		Routes: []config.Route{
			{Input: "in1", Outputs: []string{"out1"}, GainDB: 0},
			{Input: "in1", Outputs: []string{"out1"}, GainDB: -20},
		},
		Bitrate: 128,
	}

	g, err := Build(cfg, nil, nil)
	require.NoError(t, err)
	require.Len(t, g.Outputs["out1"].Mixer.Sources, 1)
	assert.Equal(t, float64(0), g.Outputs["out1"].Mixer.Sources[0].GainDB)
}
