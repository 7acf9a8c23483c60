package domain

import "math"

// AggregateStats summarizes the visible tile set after a tick.
type AggregateStats struct {
	Gaining     int     `json:"gaining"`
	Losing      int     `json:"losing"`
	MeanChange  float64 `json:"mean_change"`
	Temperature float64 `json:"temperature"`
	Volatility  float64 `json:"volatility"`
}

// ComputeStats derives aggregate statistics from a tile snapshot.
// Only the tiles passed in count: callers hand over the visible set,
// not the full catalog, when a filter view is active.
func ComputeStats(tiles []TileState) AggregateStats {
	var s AggregateStats
	if len(tiles) == 0 {
		return s
	}

	var sum float64
	for _, t := range tiles {
		if t.ChangePct > 0 {
			s.Gaining++
		} else if t.ChangePct < 0 {
			s.Losing++
		}
		sum += t.ChangePct
	}

	n := float64(len(tiles))
	s.MeanChange = sum / n
	s.Temperature = float64(s.Gaining-s.Losing) / n * 50
	s.Volatility = math.Abs(s.MeanChange) * 10
	return s
}
