package types

import "time"

// Bar is one OHLCV observation for a fixed time interval.
type Bar struct {
	Time   time.Time `csv:"time" yaml:"time" json:"time"`
	Symbol string    `csv:"symbol" yaml:"symbol" json:"symbol"`
	Open   float64   `csv:"open" yaml:"open" json:"open"`
	High   float64   `csv:"high" yaml:"high" json:"high"`
	Low    float64   `csv:"low" yaml:"low" json:"low"`
	Close  float64   `csv:"close" yaml:"close" json:"close"`
	Volume float64   `csv:"volume" yaml:"volume" json:"volume"`
}
