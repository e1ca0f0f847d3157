// Package device defines the boundary between the scan engine and the
// protocol used to talk to mining devices.
package device

//go:generate mockgen -destination=mock_client.go -package=device github.com/user/minerscan/internal/device Client

import (
	"context"
	"errors"

	"github.com/user/minerscan/internal/iprange"
	"github.com/user/minerscan/internal/model"
)

// ErrNotMiner indicates the host answered but is not a recognized miner.
var ErrNotMiner = errors.New("host is not a recognized miner")

// Client discovers devices and issues commands to them.
type Client interface {
	// Enumerate discovers the devices in r. Implementations may scan
	// concurrently; the returned readings carry at least the address.
	Enumerate(ctx context.Context, r iprange.Range) ([]model.DeviceReading, error)

	// Fetch reads the full telemetry of one device.
	Fetch(ctx context.Context, address string) (model.DeviceReading, error)

	// Resume starts hashing.
	Resume(ctx context.Context, address string) error

	// Pause stops hashing.
	Pause(ctx context.Context, address string) error

	// SetIdentifyLight turns the locate/fault light on or off.
	SetIdentifyLight(ctx context.Context, address string, on bool) error
}
