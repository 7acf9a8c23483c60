package domain

// Instrument is an immutable catalog entry for a tracked stock.
type Instrument struct {
	Ticker       string  `json:"ticker" yaml:"ticker"`
	Name         string  `json:"name" yaml:"name"`
	Sector       string  `json:"sector" yaml:"sector"`
	Exchange     string  `json:"exchange" yaml:"exchange"`
	InitialPrice float64 `json:"initial_price" yaml:"initial_price"`
}

// Catalog is the fixed set of instruments tracked by the engine.
// Order matters: the engine iterates in catalog order on every tick.
type Catalog struct {
	instruments []Instrument
	byTicker    map[string]int
}

// NewCatalog builds a catalog, dropping entries with empty or duplicate
// tickers and non-positive initial prices.
func NewCatalog(instruments []Instrument) *Catalog {
	c := &Catalog{byTicker: make(map[string]int, len(instruments))}
	for _, ins := range instruments {
		if ins.Ticker == "" || ins.InitialPrice <= 0 {
			continue
		}
		if _, dup := c.byTicker[ins.Ticker]; dup {
			continue
		}
		c.byTicker[ins.Ticker] = len(c.instruments)
		c.instruments = append(c.instruments, ins)
	}
	return c
}

// All returns the instruments in catalog order. The slice is shared;
// callers must not mutate it.
func (c *Catalog) All() []Instrument {
	return c.instruments
}

// Get looks an instrument up by ticker.
func (c *Catalog) Get(ticker string) (Instrument, bool) {
	i, ok := c.byTicker[ticker]
	if !ok {
		return Instrument{}, false
	}
	return c.instruments[i], true
}

// Index returns the catalog position of a ticker, used as the phase
// offset of the simulation momentum wave.
func (c *Catalog) Index(ticker string) (int, bool) {
	i, ok := c.byTicker[ticker]
	return i, ok
}

// Len returns the number of instruments.
func (c *Catalog) Len() int {
	return len(c.instruments)
}

// Exchanges returns the distinct exchange codes in use, catalog order.
func (c *Catalog) Exchanges() []string {
	seen := make(map[string]bool)
	var out []string
	for _, ins := range c.instruments {
		if ins.Exchange == "" || seen[ins.Exchange] {
			continue
		}
		seen[ins.Exchange] = true
		out = append(out, ins.Exchange)
	}
	return out
}

// DefaultInstruments is the built-in tile set used when the config file
// does not declare its own.
func DefaultInstruments() []Instrument {
	return []Instrument{
		{Ticker: "AAPL", Name: "Apple Inc.", Sector: "Technology", Exchange: "NASDAQ", InitialPrice: 178.50},
		{Ticker: "MSFT", Name: "Microsoft Corp.", Sector: "Technology", Exchange: "NASDAQ", InitialPrice: 415.20},
		{Ticker: "GOOGL", Name: "Alphabet Inc.", Sector: "Technology", Exchange: "NASDAQ", InitialPrice: 162.80},
		{Ticker: "AMZN", Name: "Amazon.com Inc.", Sector: "Consumer", Exchange: "NASDAQ", InitialPrice: 185.40},
		{Ticker: "NVDA", Name: "NVIDIA Corp.", Sector: "Technology", Exchange: "NASDAQ", InitialPrice: 122.60},
		{Ticker: "TSLA", Name: "Tesla Inc.", Sector: "Automotive", Exchange: "NASDAQ", InitialPrice: 248.30},
		{Ticker: "JPM", Name: "JPMorgan Chase", Sector: "Financial", Exchange: "NYSE", InitialPrice: 208.10},
		{Ticker: "V", Name: "Visa Inc.", Sector: "Financial", Exchange: "NYSE", InitialPrice: 277.90},
		{Ticker: "XOM", Name: "Exxon Mobil", Sector: "Energy", Exchange: "NYSE", InitialPrice: 114.75},
		{Ticker: "JNJ", Name: "Johnson & Johnson", Sector: "Healthcare", Exchange: "NYSE", InitialPrice: 158.25},
	}
}
