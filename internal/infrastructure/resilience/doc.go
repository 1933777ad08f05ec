/*
Package resilience provides the circuit breaker that guards the display driver.

# Overview

Mode-setting goes through a kernel driver that can fail transiently. The
breaker counts consecutive failures; once the threshold is reached it opens
and rejects calls without touching the driver until the cooldown has passed.
After the cooldown a limited number of probe calls decide whether it closes
again.

# Usage

	breaker := resilience.New("display", resilience.Settings{
		Threshold: 5,
		Cooldown:  10 * time.Second,
		OnStateChange: func(name string, from, to resilience.State) {
			log.Info("breaker state", zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	err := breaker.Do(func() error {
		return driver.SetMode(connector, mode)
	})

# States

	Closed --[threshold failures]-> Open --[cooldown]-> Half-Open --[probes succeed]-> Closed
	                                  ^                     |
	                                  +------[failure]------+
*/
package resilience
