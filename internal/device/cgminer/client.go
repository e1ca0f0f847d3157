// Package cgminer implements device.Client over the CGMiner JSON API
// (TCP port 4028 on most ASIC firmware).
package cgminer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/user/minerscan/internal/device"
	"github.com/user/minerscan/internal/iprange"
	"github.com/user/minerscan/internal/model"
	"github.com/user/minerscan/internal/util"
)

// DefaultPort is the CGMiner API port.
const DefaultPort = 4028

// ErrCommandFailed is returned when the API answers with an error status.
var ErrCommandFailed = errors.New("cgminer command failed")

// Client talks to miners through the CGMiner API.
type Client struct {
	port            int
	connectTimeout  time.Duration
	identifyTimeout time.Duration
	retries         int
	concurrency     int
	resolveNames    bool
}

// Option configures a Client.
type Option func(*Client)

// WithPort sets the API port.
func WithPort(port int) Option {
	return func(c *Client) {
		c.port = port
	}
}

// WithConnectTimeout sets the TCP connectivity check timeout.
func WithConnectTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.connectTimeout = timeout
	}
}

// WithIdentifyTimeout sets the timeout for identifying a responsive host.
func WithIdentifyTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.identifyTimeout = timeout
	}
}

// WithRetries sets how many extra connectivity attempts are made per host.
func WithRetries(retries int) Option {
	return func(c *Client) {
		c.retries = retries
	}
}

// WithConcurrency sets the number of hosts probed in parallel.
func WithConcurrency(concurrency int) Option {
	return func(c *Client) {
		c.concurrency = concurrency
	}
}

// WithReverseDNS enables hostname lookup for discovered miners.
func WithReverseDNS(enabled bool) Option {
	return func(c *Client) {
		c.resolveNames = enabled
	}
}

// New creates a CGMiner API client.
func New(opts ...Option) *Client {
	c := &Client{
		port:            DefaultPort,
		connectTimeout:  3 * time.Second,
		identifyTimeout: 5 * time.Second,
		retries:         2,
		concurrency:     64,
		resolveNames:    true,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.concurrency <= 0 {
		c.concurrency = 64
	}
	if c.retries < 0 {
		c.retries = 0
	}

	return c
}

// Enumerate probes every address of r and returns identity readings for
// the hosts that answer as miners.
func (c *Client) Enumerate(ctx context.Context, r iprange.Range) ([]model.DeviceReading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	addrs := r.Addresses()

	// Worker pool
	jobs := make(chan string, len(addrs))
	results := make(chan model.DeviceReading, len(addrs))

	var wg sync.WaitGroup
	for i := 0; i < c.concurrency && i < len(addrs); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for addr := range jobs {
				if ctx.Err() != nil {
					return
				}
				if reading, ok := c.identify(ctx, addr); ok {
					results <- reading
				}
			}
		}()
	}

	for _, addr := range addrs {
		jobs <- addr
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	var found []model.DeviceReading
	for reading := range results {
		found = append(found, reading)
	}

	if err := ctx.Err(); err != nil {
		return found, err
	}

	return found, nil
}

// identify runs the port check and version call for one host.
func (c *Client) identify(ctx context.Context, addr string) (model.DeviceReading, bool) {
	if !c.portOpen(ctx, addr) {
		return model.DeviceReading{}, false
	}

	idCtx, cancel := context.WithTimeout(ctx, c.identifyTimeout)
	defer cancel()

	resp, err := c.command(idCtx, addr, "version", "")
	if err != nil {
		util.Debug("Identify %s failed: %v", addr, err)
		return model.DeviceReading{}, false
	}

	reading, err := parseVersion(addr, resp)
	if err != nil {
		util.Debug("Host %s is not a miner: %v", addr, err)
		return model.DeviceReading{}, false
	}

	reading.Hostname = c.lookupName(idCtx, addr)

	return reading, true
}

// lookupName returns the reverse DNS name of addr, or "" when disabled or
// unresolved.
func (c *Client) lookupName(ctx context.Context, addr string) string {
	if !c.resolveNames {
		return ""
	}
	names, err := net.DefaultResolver.LookupAddr(ctx, addr)
	if err != nil || len(names) == 0 {
		return ""
	}
	return trimDot(names[0])
}

func (c *Client) portOpen(ctx context.Context, addr string) bool {
	dialer := &net.Dialer{Timeout: c.connectTimeout}
	target := c.target(addr)

	for attempt := 0; attempt <= c.retries; attempt++ {
		conn, err := dialer.DialContext(ctx, "tcp", target)
		if err == nil {
			conn.Close()
			return true
		}
		if ctx.Err() != nil || isConnectionRefused(err) {
			return false
		}
	}
	return false
}

// fetchCommand requests identity and telemetry in one round trip.
const fetchCommand = "version+summary+stats+pools"

// Fetch reads version, summary, stats and pools from one miner.
func (c *Client) Fetch(ctx context.Context, address string) (model.DeviceReading, error) {
	ctx, cancel := context.WithTimeout(ctx, c.identifyTimeout+c.connectTimeout)
	defer cancel()

	resp, err := c.command(ctx, address, fetchCommand, "")
	if err != nil {
		return model.DeviceReading{}, fmt.Errorf("fetch %s: %w", address, err)
	}

	reading, err := parseReading(address, resp)
	if err != nil {
		return model.DeviceReading{}, fmt.Errorf("parse %s: %w", address, err)
	}
	reading.Hostname = c.lookupName(ctx, address)

	return reading, nil
}

// Resume starts hashing.
func (c *Client) Resume(ctx context.Context, address string) error {
	return c.control(ctx, address, "resume", "")
}

// Pause stops hashing.
func (c *Client) Pause(ctx context.Context, address string) error {
	return c.control(ctx, address, "pause", "")
}

// SetIdentifyLight toggles the locate LED.
func (c *Client) SetIdentifyLight(ctx context.Context, address string, on bool) error {
	param := "red,off"
	if on {
		param = "red,blink"
	}
	return c.control(ctx, address, "ledset", param)
}

func (c *Client) control(ctx context.Context, address, cmd, param string) error {
	ctx, cancel := context.WithTimeout(ctx, c.identifyTimeout+c.connectTimeout)
	defer cancel()

	resp, err := c.command(ctx, address, cmd, param)
	if err != nil {
		return fmt.Errorf("%s %s: %w", cmd, address, err)
	}
	return checkStatus(resp)
}

// command sends one API request and returns the decoded JSON object.
func (c *Client) command(ctx context.Context, addr, cmd, param string) (map[string]any, error) {
	dialer := &net.Dialer{Timeout: c.connectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.target(addr))
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	req := map[string]string{"command": cmd}
	if param != "" {
		req["parameter"] = param
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	body, err := io.ReadAll(conn)
	if err != nil && len(body) == 0 {
		return nil, fmt.Errorf("read response: %w", err)
	}

	body = bytes.TrimRight(body, "\x00\r\n ")
	// Some firmware emits "}{" between multi-command sections.
	body = bytes.ReplaceAll(body, []byte("}{"), []byte("},{"))

	var out map[string]any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return out, nil
}

func (c *Client) target(addr string) string {
	return net.JoinHostPort(addr, strconv.Itoa(c.port))
}

// Connection refused means the host is up but nothing listens on the port.
func isConnectionRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}

func trimDot(name string) string {
	if n := len(name); n > 0 && name[n-1] == '.' {
		return name[:n-1]
	}
	return name
}

// Ensure Client implements device.Client.
var _ device.Client = (*Client)(nil)
