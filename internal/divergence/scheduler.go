package divergence

// Scheduler decides on which bar closes a full rescan runs
type Scheduler struct {
	minBars  int
	interval int
}

// NewScheduler derives the warm-up requirement from cfg: enough bars for the
// oscillator to settle plus two confirmed peaks.
func NewScheduler(cfg Config) Scheduler {
	interval := cfg.ScanInterval
	if interval < 1 {
		interval = 1
	}
	return Scheduler{
		minBars:  max(cfg.FastPeriod, cfg.SlowPeriod) + cfg.SmoothingPeriod + 2*cfg.EffectiveWidth(),
		interval: interval,
	}
}

// MinBars is the bar count below which no scan runs
func (s Scheduler) MinBars() int { return s.minBars }

// Ready reports whether a scan runs at barCount
func (s Scheduler) Ready(barCount int) bool {
	return barCount >= s.minBars && barCount%s.interval == 0
}
