package proposals

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// stubRow plays back one row of column values. A nil value stands for
// SQL NULL and only scans into pointer destinations, matching driver
// behaviour.
type stubRow struct {
	values []any
}

func (r stubRow) Scan(dest ...any) error {
	if len(dest) != len(r.values) {
		return fmt.Errorf("expected %d destinations, got %d", len(r.values), len(dest))
	}
	for i, v := range r.values {
		if v == nil {
			switch dest[i].(type) {
			case **time.Time, **string:
			default:
				return fmt.Errorf("cannot scan NULL into %T", dest[i])
			}
			continue
		}
		switch d := dest[i].(type) {
		case *int64:
			*d = v.(int64)
		case *float64:
			*d = v.(float64)
		case *string:
			*d = v.(string)
		case *time.Time:
			*d = v.(time.Time)
		case **time.Time:
			t := v.(time.Time)
			*d = &t
		case **string:
			s := v.(string)
			*d = &s
		default:
			return fmt.Errorf("unsupported destination %T", dest[i])
		}
	}
	return nil
}

func proposalRow(status Status, reviewedAt, decidedAt any, rejection any) stubRow {
	return stubRow{values: []any{
		int64(1), int64(7), int64(3), int64(2), "Coral Reef Recovery", "Reef survey.",
		50000.0, 0.0, string(status), string(PriorityMedium), time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
		reviewedAt, decidedAt, rejection,
	}}
}

func TestScanProposalNullDecisionColumns(t *testing.T) {
	p, err := scanProposal(proposalRow(StatusSubmitted, nil, nil, nil))
	require.NoError(t, err)
	require.Equal(t, StatusSubmitted, p.Status)
	require.Equal(t, PriorityMedium, p.Priority)
	require.Nil(t, p.ReviewedAt)
	require.Nil(t, p.DecidedAt)
	require.Empty(t, p.RejectionReason)
}

func TestScanProposalCarriesRejectionReason(t *testing.T) {
	decided := time.Date(2026, 3, 15, 14, 0, 0, 0, time.UTC)
	p, err := scanProposal(proposalRow(StatusRejected, decided, decided, "budget exceeds the opening cap"))
	require.NoError(t, err)
	require.Equal(t, StatusRejected, p.Status)
	require.NotNil(t, p.DecidedAt)
	require.Equal(t, decided, *p.DecidedAt)
	require.Equal(t, "budget exceeds the opening cap", p.RejectionReason)
}
