package models

import "time"

// Level grades a diagnostic.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Diagnostic is an advisory event produced while collecting or merging data.
// Diagnostics never fail an operation; callers decide whether to log or assert on them.
type Diagnostic struct {
	Level   Level       `json:"level"`
	Source  string      `json:"source"`
	Symbol  string      `json:"symbol,omitempty"`
	Message string      `json:"message"`
	Dates   []time.Time `json:"dates,omitempty"`
}

// Diagnostics is an append-only list of events.
type Diagnostics []Diagnostic

// Add appends an event.
func (d *Diagnostics) Add(level Level, source, symbol, message string, dates ...time.Time) {
	*d = append(*d, Diagnostic{Level: level, Source: source, Symbol: symbol, Message: message, Dates: dates})
}

// Of returns the events emitted by source.
func (d Diagnostics) Of(source string) Diagnostics {
	var out Diagnostics
	for _, e := range d {
		if e.Source == source {
			out = append(out, e)
		}
	}
	return out
}
