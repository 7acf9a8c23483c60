// Command simcheck runs the synthetic generator offline and prints the
// resulting grid, to eyeball the walk without starting the full app.
package main

import (
	"flag"
	"fmt"
	"time"

	"tickerwall/internal/domain"
	"tickerwall/internal/sim"
)

func main() {
	ticks := flag.Int("ticks", 60, "number of simulation ticks to run")
	seed := flag.Int64("seed", 42, "noise seed")
	volatility := flag.Float64("vol", 2.5, "volatility multiplier")
	flag.Parse()

	fmt.Println("=== Tickerwall Simulation Check ===")
	fmt.Printf("ticks=%d seed=%d volatility=%.2f\n\n", *ticks, *seed, *volatility)

	catalog := domain.NewCatalog(domain.DefaultInstruments())
	gen := sim.NewGenerator(sim.NewNoise(*seed))

	tiles := make([]domain.TileState, 0, catalog.Len())
	for _, ins := range catalog.All() {
		tiles = append(tiles, domain.TileState{
			Ticker:    ins.Ticker,
			Price:     ins.InitialPrice,
			BasePrice: ins.InitialPrice,
		})
	}

	start := time.Now().UnixMilli()
	for i := 0; i < *ticks; i++ {
		nowMs := start + int64(i)*1000
		for j := range tiles {
			pct := gen.Step(tiles[j].ChangePct, j, nowMs, *volatility)
			tiles[j].ApplyChangePct(pct, nowMs)
		}
	}

	fmt.Printf("%-6s %10s %10s %8s  %s\n", "TICKER", "PRICE", "BASE", "CHG%", "CLASS")
	for _, t := range tiles {
		fmt.Printf("%-6s %10.2f %10.2f %+7.2f%%  %s\n",
			t.Ticker, t.Price, t.BasePrice, t.ChangePct, t.Classification)
	}

	stats := domain.ComputeStats(tiles)
	fmt.Println()
	fmt.Printf("📈 gaining: %d   📉 losing: %d\n", stats.Gaining, stats.Losing)
	fmt.Printf("mean change: %+.3f%%   temperature: %+.1f   volatility: %.2f\n",
		stats.MeanChange, stats.Temperature, stats.Volatility)

	ok := true
	for _, t := range tiles {
		if t.ChangePct < -10 || t.ChangePct > 10 {
			ok = false
			fmt.Printf("❌ %s escaped bounds: %+.2f%%\n", t.Ticker, t.ChangePct)
		}
	}
	if ok {
		fmt.Println("\n✅ walk stayed within ±10% bounds")
	}
}
