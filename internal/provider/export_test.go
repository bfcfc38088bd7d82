package provider

import "time"

// SetPollInterval shortens the bridge polling cadence for tests.
func SetPollInterval(c Capability, d time.Duration) {
	if b, ok := c.(*Bridge); ok {
		b.pollEvery = d
	}
}
