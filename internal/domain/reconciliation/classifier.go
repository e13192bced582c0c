package reconciliation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/adspend-finance-core/internal/domain/money"
)

// Classifier converts a (systemSpend, platformSpend) pair into a typed,
// severity-ranked discrepancy. Classification is pure and deterministic;
// the tolerance and thresholds are configuration, not hard-coded policy.
type Classifier struct {
	// Tolerance is the absolute difference within which spends are
	// considered matched. Defaults to the smallest currency unit.
	Tolerance money.Amount
	// LowThresholdPct and MediumThresholdPct bound the severity bands on
	// the absolute percentage difference. Boundaries are inclusive.
	LowThresholdPct    decimal.Decimal
	MediumThresholdPct decimal.Decimal
}

// DefaultClassifier returns a classifier with a 0.01 tolerance and 2%/5%
// severity bands.
func DefaultClassifier() Classifier {
	return Classifier{
		Tolerance:          money.MustFromString("0.01"),
		LowThresholdPct:    decimal.NewFromInt(2),
		MediumThresholdPct: decimal.NewFromInt(5),
	}
}

// Classify builds the discrepancy for one account. It has no side effects
// beyond the returned record; calling it twice with identical inputs yields
// an identical classification.
func (c Classifier) Classify(batchID uuid.UUID, accountID string, systemSpend, platformSpend money.Amount) *Discrepancy {
	difference := platformSpend.Sub(systemSpend)
	differencePct := money.PercentageDifference(difference, systemSpend)

	var discrepancyType DiscrepancyType
	switch {
	case difference.Abs().Cmp(c.Tolerance) <= 0:
		discrepancyType = TypeMatched
	case difference.IsPositive():
		discrepancyType = TypeOverage
	default:
		discrepancyType = TypeShortage
	}

	now := time.Now().UTC()
	return &Discrepancy{
		ID:                   uuid.New(),
		BatchID:              batchID,
		AccountID:            accountID,
		SystemSpend:          systemSpend,
		PlatformSpend:        platformSpend,
		Difference:           difference,
		DifferencePercentage: differencePct,
		Type:                 discrepancyType,
		Severity:             c.severity(differencePct),
		ResolutionStatus:     ResolutionPending,
		Version:              1,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

func (c Classifier) severity(differencePct decimal.Decimal) Severity {
	abs := differencePct.Abs()
	switch {
	case abs.Cmp(c.LowThresholdPct) <= 0:
		return SeverityLow
	case abs.Cmp(c.MediumThresholdPct) <= 0:
		return SeverityMedium
	default:
		return SeverityHigh
	}
}

// NewUnresolvedDiscrepancy records an account whose platform spend could not
// be obtained. The batch keeps going; the gap is flagged at high severity
// and left pending resolution.
func NewUnresolvedDiscrepancy(batchID uuid.UUID, accountID string, systemSpend money.Amount, reason string) *Discrepancy {
	now := time.Now().UTC()
	return &Discrepancy{
		ID:                   uuid.New(),
		BatchID:              batchID,
		AccountID:            accountID,
		SystemSpend:          systemSpend,
		PlatformSpend:        money.Zero(),
		Difference:           money.Zero(),
		DifferencePercentage: decimal.Zero,
		Type:                 TypeUnresolved,
		Severity:             SeverityHigh,
		ResolutionStatus:     ResolutionPending,
		Notes:                "platform spend unavailable: " + reason,
		Version:              1,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}
