package cgminer

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/minerscan/internal/iprange"
)

const (
	versionResp = `{"STATUS":[{"STATUS":"S","Msg":"BMMiner versions"}],"VERSION":[{"BMMiner":"2.0.0","API":"3.1","Miner":"49.0.1.3","CompileTime":"Mon Jan 10 2022","Type":"Antminer S19j Pro"}],"id":1}`

	fetchResp = `{"version":[{"STATUS":[{"STATUS":"S"}],"VERSION":[{"BMMiner":"2.0.0","Miner":"49.0.1.3","CompileTime":"Mon Jan 10 2022","Type":"Antminer S19j Pro"}]}],` +
		`"summary":[{"STATUS":[{"STATUS":"S"}],"SUMMARY":[{"Elapsed":3600,"GHS 5s":"104000.50"}]}],` +
		`"stats":[{"STATUS":[{"STATUS":"S"}],"STATS":[{"BMMiner":"2.0.0","Miner":"49.0.1.3","Type":"Antminer S19j Pro"}{"chain_rate1":"34600","chain_rate2":"34700","chain_rate3":"34700","temp2_1":62,"temp2_2":64,"temp2_3":66,"chain_acn1":126,"fan1":5400,"fan2":0,"fan3":5460,"Power":3068}]}],` +
		`"pools":[{"STATUS":[{"STATUS":"S"}],"POOLS":[{"URL":"stratum+tcp://pool.example:3333","User":"acct.rig7","Status":"Alive"}]}],"id":1}`

	errorResp = `{"STATUS":[{"STATUS":"E","Msg":"Access denied"}],"id":1}`
)

// fakeMiner answers CGMiner API requests on loopback.
type fakeMiner struct {
	ln       net.Listener
	mu       sync.Mutex
	commands []string
	replies  map[string]string
}

func newFakeMiner(t *testing.T, replies map[string]string) *fakeMiner {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	f := &fakeMiner{ln: ln, replies: replies}
	go f.serve()
	t.Cleanup(func() { ln.Close() })
	return f
}

func (f *fakeMiner) port() int {
	return f.ln.Addr().(*net.TCPAddr).Port
}

func (f *fakeMiner) serve() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		go f.handle(conn)
	}
}

func (f *fakeMiner) handle(conn net.Conn) {
	defer conn.Close()

	var req struct {
		Command   string `json:"command"`
		Parameter string `json:"parameter"`
	}
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		return
	}

	f.mu.Lock()
	key := req.Command
	if req.Parameter != "" {
		key += "|" + req.Parameter
	}
	f.commands = append(f.commands, key)
	f.mu.Unlock()

	reply, ok := f.replies[req.Command]
	if !ok {
		reply = `{"STATUS":[{"STATUS":"S","Msg":"ok"}],"id":1}`
	}
	conn.Write(append([]byte(reply), 0))
}

func (f *fakeMiner) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

func newTestClient(port int) *Client {
	return New(
		WithPort(port),
		WithConnectTimeout(300*time.Millisecond),
		WithIdentifyTimeout(time.Second),
		WithRetries(0),
		WithReverseDNS(false),
	)
}

func TestEnumerateFindsLoopbackMiner(t *testing.T) {
	f := newFakeMiner(t, map[string]string{"version": versionResp})
	c := newTestClient(f.port())

	r, err := iprange.Parse("127.0.0.1", "127.0.0.1")
	require.NoError(t, err)

	found, err := c.Enumerate(context.Background(), r)
	require.NoError(t, err)
	require.Len(t, found, 1)

	assert.Equal(t, "127.0.0.1", found[0].Address)
	assert.Equal(t, "Antminer S19j Pro", found[0].Model)
	assert.Equal(t, "Mon Jan 10 2022", found[0].Firmware)
}

func TestEnumerateSkipsNonMiners(t *testing.T) {
	f := newFakeMiner(t, map[string]string{"version": `{"hello":"world"}`})
	c := newTestClient(f.port())

	r, err := iprange.Parse("127.0.0.1", "127.0.0.1")
	require.NoError(t, err)

	found, err := c.Enumerate(context.Background(), r)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestEnumerateCancelled(t *testing.T) {
	c := newTestClient(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, err := iprange.Parse("127.0.0.1", "127.0.0.9")
	require.NoError(t, err)

	_, err = c.Enumerate(ctx, r)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchParsesTelemetry(t *testing.T) {
	f := newFakeMiner(t, map[string]string{fetchCommand: fetchResp})
	c := newTestClient(f.port())

	reading, err := c.Fetch(context.Background(), "127.0.0.1")
	require.NoError(t, err)

	require.NotNil(t, reading.Hashrate)
	assert.InDelta(t, 104.0005, *reading.Hashrate, 1e-6)
	assert.True(t, reading.Mining)
	assert.Equal(t, time.Hour, reading.Uptime)
	assert.Equal(t, "Antminer S19j Pro", reading.Model)
	assert.Equal(t, "Mon Jan 10 2022", reading.Firmware)
	assert.Equal(t, "49.0.1.3", reading.ControlBoard)

	require.NotNil(t, reading.Power)
	assert.Equal(t, 3068.0, *reading.Power)

	require.Len(t, reading.Hashboards, 3)
	assert.Equal(t, 0, reading.Hashboards[0].Index)
	assert.InDelta(t, 34.6, *reading.Hashboards[0].Hashrate, 1e-9)
	assert.Equal(t, 126, reading.Hashboards[0].ChipCount)
	require.NotNil(t, reading.AvgTemperature)
	assert.InDelta(t, 64.0, *reading.AvgTemperature, 1e-9)

	require.Len(t, reading.Fans, 3)
	assert.Equal(t, 2, reading.Fans[1].Index)
	assert.Equal(t, 0.0, *reading.Fans[1].RPM)
	assert.Equal(t, 3, reading.Fans[2].Index)
	assert.Equal(t, 5460.0, *reading.Fans[2].RPM)

	require.Len(t, reading.Pools, 1)
	assert.Equal(t, "acct.rig7", reading.Pools[0].User)
	assert.NotEmpty(t, reading.Raw)
}

func TestFetchWithoutVersionFallsBackToStats(t *testing.T) {
	resp := `{"summary":[{"SUMMARY":[{"GHS 5s":1000}]}],"stats":[{"STATS":[{"Type":"Antminer L7"}]}],"id":1}`
	f := newFakeMiner(t, map[string]string{fetchCommand: resp})
	c := newTestClient(f.port())

	reading, err := c.Fetch(context.Background(), "127.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, "Antminer L7", reading.Model)
	assert.Empty(t, reading.Firmware)
}

func TestParseFansKeepsStoppedFansInPosition(t *testing.T) {
	st := map[string]any{
		"fan1":     json.Number("0"),
		"fan2":     json.Number("5400"),
		"fan_num":  json.Number("2"),
		"fan_mode": "auto",
	}

	fans := parseFans(st)

	require.Len(t, fans, 2)
	assert.Equal(t, 1, fans[0].Index)
	assert.Equal(t, 0.0, *fans[0].RPM)
	assert.Equal(t, 2, fans[1].Index)
	assert.Equal(t, 5400.0, *fans[1].RPM)
}

func TestControlCommands(t *testing.T) {
	f := newFakeMiner(t, nil)
	c := newTestClient(f.port())
	ctx := context.Background()

	require.NoError(t, c.Pause(ctx, "127.0.0.1"))
	require.NoError(t, c.Resume(ctx, "127.0.0.1"))
	require.NoError(t, c.SetIdentifyLight(ctx, "127.0.0.1", true))
	require.NoError(t, c.SetIdentifyLight(ctx, "127.0.0.1", false))

	assert.Equal(t, []string{"pause", "resume", "ledset|red,blink", "ledset|red,off"}, f.seen())
}

func TestControlErrorStatus(t *testing.T) {
	f := newFakeMiner(t, map[string]string{"pause": errorResp})
	c := newTestClient(f.port())

	err := c.Pause(context.Background(), "127.0.0.1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCommandFailed)
	assert.Contains(t, err.Error(), "Access denied")
}

func TestCheckStatus(t *testing.T) {
	assert.NoError(t, checkStatus(map[string]any{}))
	assert.NoError(t, checkStatus(map[string]any{
		"STATUS": []any{map[string]any{"STATUS": "S"}},
	}))
	assert.ErrorIs(t, checkStatus(map[string]any{
		"STATUS": []any{map[string]any{"STATUS": "E", "Msg": "nope"}},
	}), ErrCommandFailed)
}
