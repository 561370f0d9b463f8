package analytics

import (
	"context"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonicnav/riskengine/internal/types"
)

type stubTxReader struct {
	signatures []string
	records    map[string]types.TransactionRecord
	sigErr     error
}

func (s *stubTxReader) GetSignaturesForAddress(ctx context.Context, address string, limit int) ([]string, error) {
	if s.sigErr != nil {
		return nil, s.sigErr
	}
	return s.signatures, nil
}

func (s *stubTxReader) GetTransaction(ctx context.Context, signature string) (types.TransactionRecord, error) {
	record, ok := s.records[signature]
	if !ok {
		return types.TransactionRecord{}, types.ErrUpstreamUnavailable
	}
	return record, nil
}

type stubPriceHistory struct {
	byFeed map[string][]types.PricePoint
}

func (s *stubPriceHistory) HistoricalPrices(ctx context.Context, feedID string, from, to time.Time) ([]types.PricePoint, error) {
	points, ok := s.byFeed[feedID]
	if !ok {
		return nil, types.ErrUpstreamUnavailable
	}
	return points, nil
}

var testStart = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func day(offset int) time.Time {
	return testStart.Add(time.Duration(offset) * 24 * time.Hour)
}

func pricePoints(prices ...float64) []types.PricePoint {
	points := make([]types.PricePoint, len(prices))
	for i, price := range prices {
		points[i] = types.PricePoint{FeedID: "feed", Price: price, Timestamp: day(i)}
	}
	return points
}

func twoLegPosition() types.Position {
	return types.Position{
		StrategyID:           "lp-1",
		Address:              "pos-address",
		InitialInvestmentUSD: 1000,
		CurrentValueUSD:      1100,
		CreatedAt:            testStart,
		SubPositions: []types.SubPosition{
			{TokenSymbol: "SOL", Amount: sdkmath.NewInt(5_000_000_000), Precision: 9},
			{TokenSymbol: "USDC", Amount: sdkmath.NewInt(500_000_000), Precision: 6},
		},
	}
}

func lpStrategy() types.Strategy {
	return types.Strategy{
		ID:           "lp-1",
		ProtocolType: types.ProtocolLiquidityProviding,
		Protocol: types.ProtocolConfig{
			PriceFeedIDs: map[string]string{"SOL": "sol-feed", "USDC": "usdc-feed"},
		},
	}
}

func newTestAnalyzer(t *testing.T, tx *stubTxReader, prices *stubPriceHistory, daysAfterStart int) *Analyzer {
	t.Helper()
	analyzer, err := NewAnalyzer(AnalyzerConfig{
		Transactions: tx,
		Prices:       prices,
		Now:          func() time.Time { return day(daysAfterStart) },
	})
	require.NoError(t, err)
	return analyzer
}

func TestImpermanentLossZeroWithoutPriceMovement(t *testing.T) {
	prices := &stubPriceHistory{byFeed: map[string][]types.PricePoint{
		"sol-feed":  pricePoints(100, 100),
		"usdc-feed": pricePoints(1, 1),
	}}
	analyzer := newTestAnalyzer(t, &stubTxReader{}, prices, 1)

	result, err := analyzer.Analyze(context.Background(), twoLegPosition(), lpStrategy())
	require.NoError(t, err)

	require.NotNil(t, result.ImpermanentLossPercent)
	assert.InDelta(t, 0.0, *result.ImpermanentLossPercent, 1e-9)
}

func TestImpermanentLossDivergentPrices(t *testing.T) {
	// r0 = 2, r1 = 0.5: IL = |2*sqrt(1)/2.5 - 1| * 100 = 20.
	prices := &stubPriceHistory{byFeed: map[string][]types.PricePoint{
		"sol-feed":  pricePoints(100, 200),
		"usdc-feed": pricePoints(1, 0.5),
	}}
	analyzer := newTestAnalyzer(t, &stubTxReader{}, prices, 1)

	result, err := analyzer.Analyze(context.Background(), twoLegPosition(), lpStrategy())
	require.NoError(t, err)

	require.NotNil(t, result.ImpermanentLossPercent)
	assert.InDelta(t, 20.0, *result.ImpermanentLossPercent, 1e-9)
}

func TestImpermanentLossUndefinedWhenPricesMissing(t *testing.T) {
	prices := &stubPriceHistory{byFeed: map[string][]types.PricePoint{
		"sol-feed": pricePoints(100, 200),
		// usdc-feed missing entirely
	}}
	analyzer := newTestAnalyzer(t, &stubTxReader{}, prices, 1)

	result, err := analyzer.Analyze(context.Background(), twoLegPosition(), lpStrategy())
	require.NoError(t, err)
	assert.Nil(t, result.ImpermanentLossPercent)
}

func TestImpermanentLossUndefinedForSingleLeg(t *testing.T) {
	position := twoLegPosition()
	position.SubPositions = position.SubPositions[:1]
	prices := &stubPriceHistory{byFeed: map[string][]types.PricePoint{
		"sol-feed":  pricePoints(100, 200),
		"usdc-feed": pricePoints(1, 1),
	}}
	analyzer := newTestAnalyzer(t, &stubTxReader{}, prices, 1)

	result, err := analyzer.Analyze(context.Background(), position, lpStrategy())
	require.NoError(t, err)
	assert.Nil(t, result.ImpermanentLossPercent)
}

func TestFeeAndRebalanceExtraction(t *testing.T) {
	tx := &stubTxReader{
		signatures: []string{"sig1", "sig2", "sig3"},
		records: map[string]types.TransactionRecord{
			"sig1": {Signature: "sig1", Timestamp: day(1), Logs: []string{"Fee: 1.25 USDC", "noise line"}},
			"sig2": {Signature: "sig2", Timestamp: day(2), Logs: []string{"Harvest 3.5 reward tokens"}},
			"sig3": {Signature: "sig3", Timestamp: day(3), NetworkFeeUSD: 0.02, Logs: []string{"Rebalance pool weights 60/40"}},
		},
	}
	prices := &stubPriceHistory{byFeed: map[string][]types.PricePoint{
		"sol-feed":  pricePoints(100, 100, 100, 100),
		"usdc-feed": pricePoints(1, 1, 1, 1),
	}}
	analyzer := newTestAnalyzer(t, tx, prices, 3)

	result, err := analyzer.Analyze(context.Background(), twoLegPosition(), lpStrategy())
	require.NoError(t, err)

	assert.InDelta(t, 1.25, result.Fees.PaidUSD, 1e-9)
	assert.InDelta(t, 3.5, result.Fees.EarnedUSD, 1e-9)
	require.Len(t, result.RebalanceEvents, 1)
	assert.Equal(t, "Rebalance pool weights 60/40", result.RebalanceEvents[0].Description)
	assert.InDelta(t, 0.02, result.RebalanceEvents[0].NetworkFeeUSD, 1e-9)
}

func TestDailyReturnsFromPriceMovement(t *testing.T) {
	// 5 SOL held; SOL moves 100 -> 110 -> 105. USDC flat.
	prices := &stubPriceHistory{byFeed: map[string][]types.PricePoint{
		"sol-feed":  pricePoints(100, 110, 105),
		"usdc-feed": pricePoints(1, 1, 1),
	}}
	analyzer := newTestAnalyzer(t, &stubTxReader{}, prices, 2)

	result, err := analyzer.Analyze(context.Background(), twoLegPosition(), lpStrategy())
	require.NoError(t, err)

	require.Len(t, result.DailyReturns, 2)
	assert.InDelta(t, 50.0, result.DailyReturns[0].ReturnUSD, 1e-9)
	assert.InDelta(t, 1050.0, result.DailyReturns[0].ValueUSD, 1e-9)
	assert.InDelta(t, -25.0, result.DailyReturns[1].ReturnUSD, 1e-9)
	assert.InDelta(t, 1025.0, result.DailyReturns[1].ValueUSD, 1e-9)
}

func TestWithdrawalReducesSameDayReturn(t *testing.T) {
	tx := &stubTxReader{
		signatures: []string{"sig1"},
		records: map[string]types.TransactionRecord{
			"sig1": {Signature: "sig1", Timestamp: day(1), BalanceDeltas: map[string]float64{"USDC": -100}},
		},
	}
	prices := &stubPriceHistory{byFeed: map[string][]types.PricePoint{
		"sol-feed":  pricePoints(100, 100),
		"usdc-feed": pricePoints(1, 1),
	}}
	analyzer := newTestAnalyzer(t, tx, prices, 1)

	result, err := analyzer.Analyze(context.Background(), twoLegPosition(), lpStrategy())
	require.NoError(t, err)

	require.Len(t, result.DailyReturns, 1)
	assert.InDelta(t, -100.0, result.DailyReturns[0].ReturnUSD, 1e-9)
}

func TestDepositGrowsBaselineNotReturn(t *testing.T) {
	tx := &stubTxReader{
		signatures: []string{"sig1"},
		records: map[string]types.TransactionRecord{
			"sig1": {Signature: "sig1", Timestamp: day(1), BalanceDeltas: map[string]float64{"USDC": 200}},
		},
	}
	prices := &stubPriceHistory{byFeed: map[string][]types.PricePoint{
		"sol-feed":  pricePoints(100, 100),
		"usdc-feed": pricePoints(1, 1),
	}}
	analyzer := newTestAnalyzer(t, tx, prices, 1)

	result, err := analyzer.Analyze(context.Background(), twoLegPosition(), lpStrategy())
	require.NoError(t, err)

	require.Len(t, result.DailyReturns, 1)
	assert.Zero(t, result.DailyReturns[0].ReturnUSD)
	assert.InDelta(t, 1200.0, result.DailyReturns[0].ValueUSD, 1e-9)
}

func TestMissingPriceDayIsOmittedNotFatal(t *testing.T) {
	// No price for the middle day: its contribution simply drops out.
	prices := &stubPriceHistory{byFeed: map[string][]types.PricePoint{
		"sol-feed": {
			{FeedID: "sol-feed", Price: 100, Timestamp: day(0)},
			{FeedID: "sol-feed", Price: 120, Timestamp: day(2)},
		},
		"usdc-feed": pricePoints(1, 1, 1),
	}}
	analyzer := newTestAnalyzer(t, &stubTxReader{}, prices, 2)

	result, err := analyzer.Analyze(context.Background(), twoLegPosition(), lpStrategy())
	require.NoError(t, err)

	require.Len(t, result.DailyReturns, 2)
	assert.Zero(t, result.DailyReturns[0].ReturnUSD)
	assert.Zero(t, result.DailyReturns[1].ReturnUSD)
}

func TestPriceRanges(t *testing.T) {
	prices := &stubPriceHistory{byFeed: map[string][]types.PricePoint{
		"sol-feed":  pricePoints(100, 140, 120),
		"usdc-feed": pricePoints(1, 1, 1),
	}}
	analyzer := newTestAnalyzer(t, &stubTxReader{}, prices, 2)

	result, err := analyzer.Analyze(context.Background(), twoLegPosition(), lpStrategy())
	require.NoError(t, err)

	sol, ok := result.PriceRanges["SOL"]
	require.True(t, ok)
	assert.Equal(t, 100.0, sol.Min)
	assert.Equal(t, 140.0, sol.Max)
	assert.Equal(t, 120.0, sol.Current)
}

func TestMarkToMarketAtLatestPrices(t *testing.T) {
	// 5 SOL at $120 plus 500 USDC at $1.
	prices := &stubPriceHistory{byFeed: map[string][]types.PricePoint{
		"sol-feed":  pricePoints(100, 140, 120),
		"usdc-feed": pricePoints(1, 1, 1),
	}}
	analyzer := newTestAnalyzer(t, &stubTxReader{}, prices, 2)

	result, err := analyzer.Analyze(context.Background(), twoLegPosition(), lpStrategy())
	require.NoError(t, err)

	require.NotNil(t, result.MarkToMarketUSD)
	assert.InDelta(t, 1100.0, *result.MarkToMarketUSD, 1e-9)
}

func TestMarkToMarketNetsBorrowedLeg(t *testing.T) {
	position := twoLegPosition()
	position.SubPositions[0].Borrow = &types.BorrowPosition{
		TokenSymbol: "USDC",
		Amount:      sdkmath.NewInt(200_000_000),
		Precision:   6,
	}
	prices := &stubPriceHistory{byFeed: map[string][]types.PricePoint{
		"sol-feed":  pricePoints(100, 120),
		"usdc-feed": pricePoints(1, 1),
	}}
	analyzer := newTestAnalyzer(t, &stubTxReader{}, prices, 1)

	result, err := analyzer.Analyze(context.Background(), position, lpStrategy())
	require.NoError(t, err)

	// 5*120 + 500*1 - 200*1
	require.NotNil(t, result.MarkToMarketUSD)
	assert.InDelta(t, 900.0, *result.MarkToMarketUSD, 1e-9)
}

func TestMarkToMarketUndefinedWhenLegPriceMissing(t *testing.T) {
	prices := &stubPriceHistory{byFeed: map[string][]types.PricePoint{
		"sol-feed": pricePoints(100, 120),
		// usdc-feed missing entirely
	}}
	analyzer := newTestAnalyzer(t, &stubTxReader{}, prices, 1)

	result, err := analyzer.Analyze(context.Background(), twoLegPosition(), lpStrategy())
	require.NoError(t, err)
	assert.Nil(t, result.MarkToMarketUSD)
}

func TestSignatureFetchFailurePropagates(t *testing.T) {
	tx := &stubTxReader{sigErr: types.ErrUpstreamUnavailable}
	prices := &stubPriceHistory{byFeed: map[string][]types.PricePoint{}}
	analyzer := newTestAnalyzer(t, tx, prices, 1)

	_, err := analyzer.Analyze(context.Background(), twoLegPosition(), lpStrategy())
	require.ErrorIs(t, err, types.ErrUpstreamUnavailable)
}

func TestAddresslessPositionRejected(t *testing.T) {
	position := twoLegPosition()
	position.Address = ""
	analyzer := newTestAnalyzer(t, &stubTxReader{}, &stubPriceHistory{}, 1)

	_, err := analyzer.Analyze(context.Background(), position, lpStrategy())
	require.ErrorIs(t, err, types.ErrInsufficientData)
}
