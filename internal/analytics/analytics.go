/*

This file contains the position analytics reconstructor. It rebuilds a daily
value/return series for a position from its raw transaction history and
historical token prices, extracts fees and rebalance events from transaction
logs, and computes impermanent loss and per-token price ranges. Missing price
data for any day or token simply omits that contribution; it never fails the
whole reconstruction.

*/

package analytics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/sonicnav/riskengine/internal/datafetcher"
	"github.com/sonicnav/riskengine/internal/logger"
	"github.com/sonicnav/riskengine/internal/types"
	"github.com/sonicnav/riskengine/internal/utils"
)

const maxSignatures = 1000

const dayFormat = "2006-01-02"

// Analyzer reconstructs historical position performance.
type Analyzer struct {
	transactions datafetcher.TransactionReader
	prices       datafetcher.HistoricalPriceReader
	parser       LogParser
	now          func() time.Time
	log          zerolog.Logger
}

// AnalyzerConfig holds the reconstructor dependencies.
type AnalyzerConfig struct {
	Transactions datafetcher.TransactionReader
	Prices       datafetcher.HistoricalPriceReader
	Parser       LogParser        // nil uses the marker parser
	Now          func() time.Time // nil uses time.Now
}

// NewAnalyzer validates dependencies and builds the reconstructor.
func NewAnalyzer(cfg AnalyzerConfig) (*Analyzer, error) {
	if cfg.Transactions == nil {
		return nil, errors.New("transaction reader cannot be nil")
	}
	if cfg.Prices == nil {
		return nil, errors.New("historical price reader cannot be nil")
	}
	parser := cfg.Parser
	if parser == nil {
		parser = NewMarkerParser()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Analyzer{
		transactions: cfg.Transactions,
		prices:       cfg.Prices,
		parser:       parser,
		now:          now,
		log:          logger.GetForComponent("analytics"),
	}, nil
}

// tokenHistory is the per-day close price of one token over the window.
type tokenHistory struct {
	byDay  map[string]float64
	series []types.PricePoint
}

// Analyze reconstructs the full performance view of one position.
func (a *Analyzer) Analyze(ctx context.Context, position types.Position, strategy types.Strategy) (types.PositionAnalytics, error) {
	if position.Address == "" {
		return types.PositionAnalytics{}, fmt.Errorf("%w: position has no on-chain address", types.ErrInsufficientData)
	}

	records, err := a.fetchTransactions(ctx, position.Address)
	if err != nil {
		return types.PositionAnalytics{}, err
	}
	histories := a.fetchPriceHistories(ctx, position.CreatedAt, strategy)

	fees, rebalances := a.scanLogs(records)
	dailyReturns := a.reconstructDaily(position, records, histories)

	analytics := types.PositionAnalytics{
		DailyReturns:           dailyReturns,
		ImpermanentLossPercent: impermanentLoss(position, histories),
		Fees:                   fees,
		RebalanceEvents:        rebalances,
		PriceRanges:            priceRanges(histories),
		MarkToMarketUSD:        markToMarket(position, histories),
		TotalReturnPercent:     position.ReturnFraction() * 100,
		AnnualizedVolatility:   annualizedVolatility(dailyReturns),
	}
	return analytics, nil
}

func (a *Analyzer) fetchTransactions(ctx context.Context, address string) ([]types.TransactionRecord, error) {
	signatures, err := a.transactions.GetSignaturesForAddress(ctx, address, maxSignatures)
	if err != nil {
		return nil, fmt.Errorf("fetching signatures for %s: %w", address, err)
	}

	records := make([]types.TransactionRecord, 0, len(signatures))
	for _, signature := range signatures {
		record, err := a.transactions.GetTransaction(ctx, signature)
		if err != nil {
			a.log.Warn().Err(err).Str("signature", signature).Msg("Skipping unreadable transaction")
			continue
		}
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	return records, nil
}

func (a *Analyzer) fetchPriceHistories(ctx context.Context, from time.Time, strategy types.Strategy) map[string]tokenHistory {
	histories := make(map[string]tokenHistory, len(strategy.Protocol.PriceFeedIDs))
	for symbol, feedID := range strategy.Protocol.PriceFeedIDs {
		points, err := a.prices.HistoricalPrices(ctx, feedID, from, a.now())
		if err != nil {
			a.log.Warn().Err(err).Str("token", symbol).Msg("Historical prices unavailable, omitting token from reconstruction")
			continue
		}
		byDay := make(map[string]float64, len(points))
		for _, point := range points {
			if point.Price > 0 {
				byDay[point.Timestamp.UTC().Format(dayFormat)] = point.Price
			}
		}
		histories[symbol] = tokenHistory{byDay: byDay, series: points}
	}
	return histories
}

func (a *Analyzer) scanLogs(records []types.TransactionRecord) (types.FeeSummary, []types.RebalanceEvent) {
	var fees types.FeeSummary
	var rebalances []types.RebalanceEvent
	for _, record := range records {
		recordFees := a.parser.ExtractFees(record.Logs)
		fees.EarnedUSD += recordFees.EarnedUSD
		fees.PaidUSD += recordFees.PaidUSD

		if description, found := a.parser.ExtractRebalance(record.Logs); found {
			rebalances = append(rebalances, types.RebalanceEvent{
				Timestamp:     record.Timestamp,
				NetworkFeeUSD: record.NetworkFeeUSD,
				Description:   description,
			})
		}
	}
	return fees, rebalances
}

// reconstructDaily walks the calendar days of the position's life and
// derives each day's return from price movement on held and borrowed token
// amounts plus observed balance deltas. Withdrawals reduce the day's return;
// deposits grow the tracked investment baseline instead of counting as
// return.
func (a *Analyzer) reconstructDaily(position types.Position, records []types.TransactionRecord, histories map[string]tokenHistory) []types.DailyReturn {
	start := position.CreatedAt.UTC().Truncate(24 * time.Hour)
	end := a.now().UTC().Truncate(24 * time.Hour)
	if !start.Before(end) && !start.Equal(end) {
		return nil
	}

	recordsByDay := make(map[string][]types.TransactionRecord)
	for _, record := range records {
		day := record.Timestamp.UTC().Format(dayFormat)
		recordsByDay[day] = append(recordsByDay[day], record)
	}

	held := heldAmounts(position)
	borrowed := borrowedAmounts(position)

	value := position.InitialInvestmentUSD
	var dailyReturns []types.DailyReturn

	for day := start.Add(24 * time.Hour); !day.After(end); day = day.Add(24 * time.Hour) {
		dayKey := day.Format(dayFormat)
		prevKey := day.Add(-24 * time.Hour).Format(dayFormat)

		var dayReturn float64
		for symbol, amount := range held {
			history, ok := histories[symbol]
			if !ok {
				continue
			}
			prev, okPrev := history.byDay[prevKey]
			cur, okCur := history.byDay[dayKey]
			if !okPrev || !okCur {
				continue
			}
			dayReturn += amount * (cur - prev)
		}
		for symbol, amount := range borrowed {
			history, ok := histories[symbol]
			if !ok {
				continue
			}
			prev, okPrev := history.byDay[prevKey]
			cur, okCur := history.byDay[dayKey]
			if !okPrev || !okCur {
				continue
			}
			dayReturn -= amount * (cur - prev)
		}

		for _, record := range recordsByDay[dayKey] {
			for symbol, delta := range record.BalanceDeltas {
				history, ok := histories[symbol]
				if !ok {
					continue
				}
				price, ok := history.byDay[dayKey]
				if !ok {
					continue
				}
				if delta < 0 {
					dayReturn += delta * price
				} else {
					value += delta * price
				}
			}
		}

		prevValue := value
		value += dayReturn
		returnPercent := 0.0
		if prevValue > 0 {
			returnPercent = dayReturn / prevValue * 100
		}
		dailyReturns = append(dailyReturns, types.DailyReturn{
			Date:          day,
			ValueUSD:      value,
			ReturnUSD:     dayReturn,
			ReturnPercent: returnPercent,
		})
	}
	return dailyReturns
}

func heldAmounts(position types.Position) map[string]float64 {
	amounts := make(map[string]float64, len(position.SubPositions))
	for _, sub := range position.SubPositions {
		amount, err := utils.RawToFloat64(sub.Amount, sub.Precision)
		if err != nil {
			continue
		}
		amounts[sub.TokenSymbol] += amount
	}
	return amounts
}

func borrowedAmounts(position types.Position) map[string]float64 {
	amounts := make(map[string]float64)
	for _, sub := range position.SubPositions {
		if sub.Borrow == nil {
			continue
		}
		amount, err := utils.RawToFloat64(sub.Borrow.Amount, sub.Borrow.Precision)
		if err != nil {
			continue
		}
		amounts[sub.Borrow.TokenSymbol] += amount
	}
	return amounts
}

// markToMarket values the position's holdings at each token's most recent
// price, netting out borrowed legs. It returns nil when any leg's price is
// unknown, since a partial valuation would understate the position.
func markToMarket(position types.Position, histories map[string]tokenHistory) *float64 {
	if len(position.SubPositions) == 0 {
		return nil
	}

	var total float64
	for _, sub := range position.SubPositions {
		price, ok := latestPrice(histories, sub.TokenSymbol)
		if !ok {
			return nil
		}
		usd, err := utils.RawAmountUSD(sub.Amount, sub.Precision, price)
		if err != nil {
			return nil
		}
		total += usd

		if sub.Borrow == nil {
			continue
		}
		borrowPrice, ok := latestPrice(histories, sub.Borrow.TokenSymbol)
		if !ok {
			return nil
		}
		borrowUSD, err := utils.RawAmountUSD(sub.Borrow.Amount, sub.Borrow.Precision, borrowPrice)
		if err != nil {
			return nil
		}
		total -= borrowUSD
	}
	return &total
}

func latestPrice(histories map[string]tokenHistory, symbol string) (float64, bool) {
	history, ok := histories[symbol]
	if !ok || len(history.series) == 0 {
		return 0, false
	}
	price := history.series[len(history.series)-1].Price
	if price <= 0 {
		return 0, false
	}
	return price, true
}

// impermanentLoss computes IL for two-leg positions from each leg's price at
// creation and its most recent price. It returns nil, not zero, when any
// required price point is missing.
func impermanentLoss(position types.Position, histories map[string]tokenHistory) *float64 {
	if len(position.SubPositions) != 2 {
		return nil
	}

	ratios := make([]float64, 0, 2)
	for _, sub := range position.SubPositions {
		history, ok := histories[sub.TokenSymbol]
		if !ok || len(history.series) == 0 {
			return nil
		}
		initial := history.series[0].Price
		current := history.series[len(history.series)-1].Price
		if initial <= 0 || current <= 0 {
			return nil
		}
		ratios = append(ratios, current/initial)
	}

	r0, r1 := ratios[0], ratios[1]
	il := math.Abs(2*math.Sqrt(r0*r1)/(r0+r1)-1) * 100
	return &il
}

func priceRanges(histories map[string]tokenHistory) map[string]types.PriceRange {
	ranges := make(map[string]types.PriceRange, len(histories))
	for symbol, history := range histories {
		if len(history.series) == 0 {
			continue
		}
		r := types.PriceRange{Symbol: symbol, Min: math.MaxFloat64}
		for _, point := range history.series {
			if point.Price <= 0 {
				continue
			}
			r.Min = math.Min(r.Min, point.Price)
			r.Max = math.Max(r.Max, point.Price)
			r.Current = point.Price
		}
		if r.Max == 0 {
			continue
		}
		ranges[symbol] = r
	}
	return ranges
}

// annualizedVolatility is the standard deviation of daily percent returns
// scaled to a yearly horizon.
func annualizedVolatility(dailyReturns []types.DailyReturn) float64 {
	if len(dailyReturns) < 2 {
		return 0
	}
	returns := make([]float64, len(dailyReturns))
	for i, day := range dailyReturns {
		returns[i] = day.ReturnPercent
	}
	return stat.StdDev(returns, nil) * math.Sqrt(365)
}
