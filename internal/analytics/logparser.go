/*

This file contains the transaction log parser. Marker scanning over raw log
text is a best-effort heuristic, so it sits behind a narrow interface that a
structured event decoder can replace without touching the reconstruction
pipeline. Unmatched logs are ignored, never fatal.

*/

package analytics

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sonicnav/riskengine/internal/types"
)

// LogParser extracts fee and rebalance signals from raw transaction logs.
type LogParser interface {
	ExtractFees(logs []string) types.FeeSummary
	ExtractRebalance(logs []string) (description string, found bool)
}

var amountPattern = regexp.MustCompile(`[-+]?\d+(?:\.\d+)?`)

// markerParser is the default text-marker implementation.
type markerParser struct{}

// NewMarkerParser returns the default log parser that scans for "Fee:",
// "Harvest"/"Reward" and "Rebalance" markers.
func NewMarkerParser() LogParser {
	return markerParser{}
}

func (markerParser) ExtractFees(logs []string) types.FeeSummary {
	var fees types.FeeSummary
	for _, line := range logs {
		switch {
		case strings.Contains(line, "Fee:"):
			if amount, ok := firstAmount(line); ok {
				fees.PaidUSD += amount
			}
		case strings.Contains(line, "Harvest") || strings.Contains(line, "Reward"):
			if amount, ok := firstAmount(line); ok {
				fees.EarnedUSD += amount
			}
		}
	}
	return fees
}

func (markerParser) ExtractRebalance(logs []string) (string, bool) {
	for _, line := range logs {
		if strings.Contains(line, "Rebalance") {
			return line, true
		}
	}
	return "", false
}

func firstAmount(line string) (float64, bool) {
	match := amountPattern.FindString(line)
	if match == "" {
		return 0, false
	}
	amount, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return amount, true
}
