package infra

import (
	"fmt"
	"strings"
)

// ANSI color codes
const (
	ColorReset  = "\033[0m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
)

// PrintBanner displays the startup banner with the sourcing mode.
func PrintBanner(cfg *Config) {
	mode := strings.ToUpper(cfg.Engine.Mode)
	version := cfg.App.Version

	color := ColorCyan
	modeDesc := "SYNTHETIC RANDOM WALK"
	if mode == "LIVE" {
		color = ColorGreen
		modeDesc = "POLLED LIVE QUOTES"
	}

	fmt.Println()
	fmt.Printf("%s###########################################################%s\n", color, ColorReset)
	fmt.Printf("%s#                                                         #%s\n", color, ColorReset)
	fmt.Printf("%s#                 📈 Tickerwall Price Grid                #%s\n", color, ColorReset)
	fmt.Printf("%s#                                                         #%s\n", color, ColorReset)
	fmt.Printf("%s#   MODE:    %-36s #%s\n", color, mode, ColorReset)
	fmt.Printf("%s#   SOURCE:  %-36s #%s\n", color, modeDesc, ColorReset)
	fmt.Printf("%s#   VERSION: %-36s #%s\n", color, version, ColorReset)
	fmt.Printf("%s#                                                         #%s\n", color, ColorReset)
	fmt.Printf("%s###########################################################%s\n", color, ColorReset)
	fmt.Println()
}
