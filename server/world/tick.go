package world

import (
	"math"
	"time"
)

// ticker implements the internal tick loop of a World.
type ticker struct {
	interval time.Duration
}

const tpsSampleSize = 20

// tickLoop ticks the World at the interval of the ticker until the World is
// closed, measuring the ticks per second achieved.
func (t ticker) tickLoop(w *World) {
	defer w.running.Done()

	tc := time.NewTicker(t.interval)
	defer tc.Stop()

	target := 1 / t.interval.Seconds()
	lastTick := time.Now()
	var (
		durationSum time.Duration
		ticksCount  int
		warned      bool
	)
	for {
		select {
		case <-tc.C:
			tickStart := time.Now()
			duration := tickStart.Sub(lastTick)
			lastTick = tickStart
			if duration > 0 {
				durationSum += duration
				ticksCount++
				if ticksCount >= tpsSampleSize {
					tps := 1 / (durationSum / time.Duration(ticksCount)).Seconds()
					w.tps.Store(math.Float64bits(tps))
					// Allow for 5% of jitter before warning.
					if tps < target*0.95 {
						if !warned {
							w.conf.Log.Warn("TPS dropped below target.", "tps", tps, "target", target)
							warned = true
						}
					} else {
						warned = false
					}
					durationSum, ticksCount = 0, 0
				}
			}
			w.Tick()
		case <-w.closing:
			return
		}
	}
}
