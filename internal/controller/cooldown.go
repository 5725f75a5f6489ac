package controller

import (
	"context"
	"errors"
	"fmt"
)

// Cooldown blocks until the oven has cooled to target (integer-truncated
// comparison), then resets the run. The heater is kept off throughout.
// progress, if set, is called after every sample taken while waiting.
func (c *Controller) Cooldown(ctx context.Context, target float64, progress func(Snapshot)) error {
	c.phase = PhaseCoolingDown
	c.log.Infow("cooldown_started", "target_c", target)

	for {
		if err := ctx.Err(); err != nil {
			return c.abortCooldown(err)
		}
		if _, ok := c.UpdateStatus(); ok {
			break
		}
	}

	if err := c.Off(); err != nil {
		return fmt.Errorf("cooldown: %w", err)
	}

	for int(target) < int(c.temperature) {
		if err := ctx.Err(); err != nil {
			return c.abortCooldown(err)
		}
		if _, ok := c.UpdateStatus(); !ok {
			continue
		}
		if int(target) < int(c.temperature) {
			fmt.Fprintf(c.out, "%.1fC is over start temperature %.1fC, waiting for cool down (%s C/s)\n",
				c.temperature, target, c.Velocity())
		}
		if progress != nil {
			progress(c.Snapshot())
		}
	}

	c.log.Infow("cooldown_complete", "temperature", c.temperature, "target_c", target)
	return c.Reset()
}

func (c *Controller) abortCooldown(cause error) error {
	c.phase = PhaseIdle
	c.log.Warnw("cooldown_aborted", "err", cause, "temperature", c.temperature)
	return errors.Join(cause, c.Off())
}
