// Package symbols canonicalizes user supplied tickers and derives the bare codes
// used to match TWSE rows, which carry only numeric codes.
package symbols

import (
	"regexp"
	"strings"
)

// MarketSuffix is appended to local numeric tickers.
const MarketSuffix = ".TW"

const separator = "."

// localTicker matches the typical numeric ticker length for TW markets.
var localTicker = regexp.MustCompile(`^\d{3,6}$`)

// Split breaks raw tokens on commas and whitespace so "2330,2317" and
// "2330 2317" behave like two tokens.
func Split(raw []string) []string {
	var out []string
	for _, r := range raw {
		out = append(out, strings.FieldsFunc(r, func(c rune) bool {
			return c == ',' || c == ' ' || c == '\t' || c == '\n'
		})...)
	}
	return out
}

// Normalize trims tokens, drops empty ones, qualifies local numeric tickers when
// autoQualify is set and removes duplicates keeping the first occurrence.
//
//	Normalize([]string{"2330", "AAPL", "2330"}, true) == []string{"2330.TW", "AAPL"}
func Normalize(raw []string, autoQualify bool) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if autoQualify && localTicker.MatchString(s) {
			s = Qualify(s)
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Qualify appends the market suffix to a bare code.
func Qualify(code string) string {
	return strings.TrimSpace(code) + MarketSuffix
}

// Bare returns the code portion of a symbol: the text before the first ".",
// trimmed. A symbol without a separator is returned trimmed.
func Bare(symbol string) string {
	code, _, _ := strings.Cut(symbol, separator)
	return strings.TrimSpace(code)
}

// IsLocal reports whether a symbol refers to a TW listed instrument.
func IsLocal(symbol string) bool {
	return strings.HasSuffix(symbol, MarketSuffix) || localTicker.MatchString(strings.TrimSpace(symbol))
}
