package alert

import (
	"fmt"

	"github.com/adi-miller/irrigate/internal/history"
)

// CheckIrregularFlow compares a completed cycle's average flow against the
// valve's baseline band and fires IRREGULAR_FLOW outside it. Runs once per
// completed cycle with nonzero elapsed seconds; a nil baseline (shallow
// history) skips the check entirely.
func CheckIrregularFlow(mgr *Manager, valveName string, seconds int, liters float64, baseline *history.Baseline, threshold float64) {
	if baseline == nil || seconds <= 0 {
		return
	}

	actual := liters / float64(seconds) * 60
	band := baseline.StdDev * threshold
	low, high := baseline.LPM-band, baseline.LPM+band

	if actual >= low && actual <= high {
		mgr.Clear(IrregularFlow, valveName)
		return
	}

	deviation := 0.0
	if baseline.LPM > 0 {
		deviation = (actual - baseline.LPM) / baseline.LPM * 100
	}
	mgr.Alert(IrregularFlow,
		fmt.Sprintf("flow %.2f L/min deviates %+.1f%% from baseline %.2f L/min", actual, deviation, baseline.LPM),
		valveName,
		map[string]any{
			"actual_lpm":    actual,
			"baseline_lpm":  baseline.LPM,
			"std_dev":       baseline.StdDev,
			"threshold":     threshold,
			"deviation_pct": deviation,
		})
}
