package admin

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivugurura/sonos-mux/config"
)

type fakeSupervisor struct {
	reloaded  *config.Config
	reloadErr error
}

func (f *fakeSupervisor) Version() string { return "0.1.0-test" }

func (f *fakeSupervisor) Reload(ctx context.Context, cfg *config.Config) error {
	f.reloaded = cfg
	return f.reloadErr
}

func (f *fakeSupervisor) Stats(ctx context.Context) (interface{}, error) {
	return map[string]int{"outputs": 2}, nil
}

func startTestServer(t *testing.T, sup Supervisor) (addr string, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := New("", sup, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = srv.serve(ctx, ln) }()

	return ln.Addr().String(), cancel
}

func roundTrip(t *testing.T, addr, command string) Response {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(command + "\n"))
	require.NoError(t, err)

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(line)), &resp))
	return resp
}

// roundTripApply sends an "apply" command followed by a TOML body
// terminated by the blank-line sentinel the protocol expects.
func roundTripApply(t *testing.T, addr, doc string) Response {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	var msg strings.Builder
	msg.WriteString("apply\n")
	msg.WriteString(doc)
	msg.WriteString("\n\n")
	_, err = conn.Write([]byte(msg.String()))
	require.NoError(t, err)

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(line)), &resp))
	return resp
}

func TestAdminVersionCommand(t *testing.T) {
	sup := &fakeSupervisor{}
	addr, stop := startTestServer(t, sup)
	defer stop()

	resp := roundTrip(t, addr, "version")
	assert.True(t, resp.Success)
	assert.Contains(t, resp.Message, "0.1.0-test")
}

func TestAdminUnknownCommand(t *testing.T) {
	sup := &fakeSupervisor{}
	addr, stop := startTestServer(t, sup)
	defer stop()

	resp := roundTrip(t, addr, "bogus")
	assert.False(t, resp.Success)
}

func TestAdminStatsCommand(t *testing.T) {
	sup := &fakeSupervisor{}
	addr, stop := startTestServer(t, sup)
	defer stop()

	resp := roundTrip(t, addr, "stats")
	assert.True(t, resp.Success)
	assert.Contains(t, resp.Message, "outputs")
}

// validConfigDoc deliberately has no blank lines between tables: the
// admin line protocol's "apply" command reads until the first blank
// line, so a TOML document with blank lines between [[tables]] (as
// config_test.go's fixtures use, parsed directly rather than over the
// wire) would be truncated mid-document here.
const validConfigDoc = `[[inputs]]
id = "silence"
kind = "silence"
[[outputs]]
id = "out1"
kind = "sonos"
room = "Living Room"
[[outputs]]
id = "out2"
kind = "sonos"
room = "Kitchen"
[[routes]]
input = "silence"
outputs = ["out1", "out2"]
`

func TestAdminReloadCommandLoadsFileAndReloads(t *testing.T) {
	sup := &fakeSupervisor{}
	addr, stop := startTestServer(t, sup)
	defer stop()

	path := filepath.Join(t.TempDir(), "muxd.toml")
	require.NoError(t, os.WriteFile(path, []byte(validConfigDoc), 0o644))

	resp := roundTrip(t, addr, "reload "+path)
	assert.True(t, resp.Success)
	require.NotNil(t, sup.reloaded)
	require.Len(t, sup.reloaded.Outputs, 2)
}

func TestAdminReloadCommandRejectsMissingFile(t *testing.T) {
	sup := &fakeSupervisor{}
	addr, stop := startTestServer(t, sup)
	defer stop()

	resp := roundTrip(t, addr, "reload /no/such/file.toml")
	assert.False(t, resp.Success)
	assert.Nil(t, sup.reloaded)
}

func TestAdminApplyValidConfigReachesSupervisor(t *testing.T) {
	sup := &fakeSupervisor{}
	addr, stop := startTestServer(t, sup)
	defer stop()

	resp := roundTripApply(t, addr, validConfigDoc)
	assert.True(t, resp.Success)
	require.NotNil(t, sup.reloaded)
	require.Len(t, sup.reloaded.Outputs, 2)
	assert.Equal(t, "out1", sup.reloaded.Outputs[0].ID)
	assert.Equal(t, "out2", sup.reloaded.Outputs[1].ID)

	statsResp := roundTrip(t, addr, "stats")
	assert.True(t, statsResp.Success)
}

// TestAdminApplyInvalidPayloadLeavesGraphUnchanged covers the
// atomicity property: a malformed "apply" body must never reach the
// supervisor's Reload, so whatever graph was running keeps running.
func TestAdminApplyInvalidPayloadLeavesGraphUnchanged(t *testing.T) {
	sup := &fakeSupervisor{}
	addr, stop := startTestServer(t, sup)
	defer stop()

	badDoc := `
[[inputs]]
id = "x"
kind = "not_a_real_kind"
`
	resp := roundTripApply(t, addr, badDoc)
	assert.False(t, resp.Success)
	assert.Nil(t, sup.reloaded)

	statsResp := roundTrip(t, addr, "stats")
	assert.True(t, statsResp.Success)
	assert.Contains(t, statsResp.Message, "outputs")
}
