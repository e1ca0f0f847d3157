// Package control issues bulk commands to selected miners.
package control

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/user/minerscan/internal/device"
	"github.com/user/minerscan/internal/registry"
	"github.com/user/minerscan/internal/util"
)

// Action is a miner command.
type Action string

const (
	ActionResume   Action = "resume"
	ActionPause    Action = "pause"
	ActionIdentify Action = "identify"
)

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionResume, ActionPause, ActionIdentify:
		return a, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// Refresher schedules a telemetry refresh of one miner.
type Refresher interface {
	Refresh(address string) error
}

// Result reports the outcome per address.
type Result struct {
	Succeeded []string          `json:"succeeded"`
	Failed    map[string]string `json:"failed,omitempty"`
}

// Controller fans commands out to miners with bounded concurrency.
type Controller struct {
	client    device.Client
	registry  *registry.Registry
	refresher Refresher
	limit     int
}

// New creates a controller. refresher may be nil.
func New(client device.Client, reg *registry.Registry, refresher Refresher, limit int) *Controller {
	if limit <= 0 {
		limit = 16
	}
	return &Controller{
		client:    client,
		registry:  reg,
		refresher: refresher,
		limit:     limit,
	}
}

// Run applies action to every address. Identify toggles the light
// relative to the last known state of each miner. Failures are collected
// and never stop the other commands.
func (c *Controller) Run(ctx context.Context, action Action, addrs []string) Result {
	var mu sync.Mutex
	res := Result{Failed: make(map[string]string)}

	g := new(errgroup.Group)
	g.SetLimit(c.limit)

	for _, addr := range addrs {
		g.Go(func() error {
			err := c.apply(ctx, action, addr)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				util.Warn("%s on %s failed: %v", action, addr, err)
				res.Failed[addr] = err.Error()
				return nil
			}
			res.Succeeded = append(res.Succeeded, addr)
			return nil
		})
	}
	g.Wait()

	sort.Strings(res.Succeeded)

	if c.refresher != nil {
		for _, addr := range res.Succeeded {
			if err := c.refresher.Refresh(addr); err != nil {
				util.Debug("Post-%s refresh of %s skipped: %v", action, addr, err)
			}
		}
	}

	util.Info("%s: %d succeeded, %d failed", action, len(res.Succeeded), len(res.Failed))
	return res
}

func (c *Controller) apply(ctx context.Context, action Action, addr string) error {
	switch action {
	case ActionResume:
		return c.client.Resume(ctx, addr)
	case ActionPause:
		return c.client.Pause(ctx, addr)
	case ActionIdentify:
		on := true
		if e, ok := c.registry.Get(addr); ok && e.Reading != nil {
			on = !e.Reading.LightFlashing
		}
		if err := c.client.SetIdentifyLight(ctx, addr, on); err != nil {
			return err
		}
		c.markLight(addr, on)
		return nil
	}
	return fmt.Errorf("unknown action %q", action)
}

// markLight records the new light state so the next toggle flips it back.
func (c *Controller) markLight(addr string, on bool) {
	e, ok := c.registry.Get(addr)
	if !ok || e.Reading == nil {
		return
	}
	r := *e.Reading
	r.LightFlashing = on
	c.registry.UpdateOne(addr, r)
}
