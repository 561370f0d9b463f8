/*

This file contains the best-effort monitoring archive. Each completed
monitoring tick is written as one row per owner, alongside raised-alert
history. The cycle counter is stored per owner so numbering survives
restarts. Archive failures are reported to the caller, who logs and
continues; nothing here is on a critical path.

*/

package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/sonicnav/riskengine/internal/types"
)

// IncrementCycleNumber bumps and returns the owner's cycle counter.
func IncrementCycleNumber(owner string) (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO owner_cycle_counter (owner_address, current_cycle)
		VALUES ($1, 1)
		ON CONFLICT (owner_address)
		DO UPDATE SET current_cycle = owner_cycle_counter.current_cycle + 1,
		              updated_at = CURRENT_TIMESTAMP
		RETURNING current_cycle;`

	var cycle int
	if err := DB.QueryRow(query, owner).Scan(&cycle); err != nil {
		return 0, fmt.Errorf("failed to increment cycle counter for %s: %w", owner, err)
	}
	return cycle, nil
}

// SaveMonitorCycle archives one completed monitoring tick.
func SaveMonitorCycle(owner string, cycle int, positions []types.Position, snapshot types.MarketSnapshot, unreadAlerts int) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	positionsJSON, err := json.Marshal(positions)
	if err != nil {
		return fmt.Errorf("failed to marshal positions: %w", err)
	}

	var portfolioValue float64
	for _, position := range positions {
		portfolioValue += position.CurrentValueUSD
	}

	query := `
		INSERT INTO monitor_cycles (
			owner_address, cycle_number, cycle_timestamp,
			portfolio_value_usd, position_count, unread_alerts,
			market_trend, volatility_index, reference_price_usd, positions
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);`

	_, err = DB.Exec(query,
		owner, cycle, snapshot.Timestamp,
		portfolioValue, len(positions), unreadAlerts,
		string(snapshot.Trend), snapshot.VolatilityIndex, snapshot.ReferencePriceUSD, positionsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save monitor cycle: %w", err)
	}

	log.Debug().Str("owner", owner).Int("cycle", cycle).Msg("Monitor cycle archived")
	return nil
}

// SaveAlert archives one raised alert. Replays of the same alert id are
// ignored.
func SaveAlert(alert types.RiskAlert) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	detailsJSON, err := json.Marshal(alert.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal alert details: %w", err)
	}

	query := `
		INSERT INTO alert_history (
			alert_id, owner_address, created_at, severity, alert_type, strategy_id, message, details
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (alert_id) DO NOTHING;`

	_, err = DB.Exec(query,
		alert.ID, alert.Owner, alert.CreatedAt, string(alert.Severity),
		string(alert.Type), string(alert.StrategyID), alert.Message, detailsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save alert: %w", err)
	}
	return nil
}

// Archive adapts the package-level persistence functions to the monitoring
// engine's cycle observer hook.
type Archive struct{}

// ObserveAlert appends a newly raised alert to the archive's alert history.
func (Archive) ObserveAlert(ctx context.Context, alert types.RiskAlert) error {
	return SaveAlert(alert)
}

// ObserveCycle archives the tick summary under the owner's next cycle number.
func (Archive) ObserveCycle(ctx context.Context, owner string, positions []types.Position, snapshot types.MarketSnapshot, unreadAlerts int) error {
	cycle, err := IncrementCycleNumber(owner)
	if err != nil {
		return err
	}
	return SaveMonitorCycle(owner, cycle, positions, snapshot, unreadAlerts)
}
