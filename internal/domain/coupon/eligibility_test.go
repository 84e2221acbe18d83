package coupon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterEligible(t *testing.T) {
	lines := []Line{
		{ProductID: "p1", UnitPrice: dec("100"), Quantity: 1},
		{ProductID: "p2", UnitPrice: dec("50"), Quantity: 2},
		{ProductID: "p3", UnitPrice: dec("25"), Quantity: 4},
	}

	tests := []struct {
		name    string
		coupon  Coupon
		used    map[string]struct{}
		wantIDs []string
		reason  Reason
	}{
		{
			name:    "global coupon keeps all lines",
			coupon:  Coupon{Code: "ALL", Global: true},
			wantIDs: []string{"p1", "p2", "p3"},
		},
		{
			name:    "non-global with empty product list keeps all lines",
			coupon:  Coupon{Code: "EMPTY"},
			wantIDs: []string{"p1", "p2", "p3"},
		},
		{
			name:    "restricted coupon narrows to its products",
			coupon:  Coupon{Code: "SOME", ProductIDs: []string{"p2", "p3"}},
			wantIDs: []string{"p2", "p3"},
		},
		{
			name:   "restriction matching nothing",
			coupon: Coupon{Code: "NONE", ProductIDs: []string{"p9"}},
			reason: ReasonNotApplicable,
		},
		{
			name:    "used products removed",
			coupon:  Coupon{Code: "ALL", Global: true},
			used:    map[string]struct{}{"p1": {}},
			wantIDs: []string{"p2", "p3"},
		},
		{
			name:   "every product already used",
			coupon: Coupon{Code: "ALL", Global: true},
			used:   map[string]struct{}{"p1": {}, "p2": {}, "p3": {}},
			reason: ReasonAlreadyUsed,
		},
		{
			name:    "restriction and used filter combine",
			coupon:  Coupon{Code: "SOME", ProductIDs: []string{"p1", "p2"}},
			used:    map[string]struct{}{"p1": {}},
			wantIDs: []string{"p2"},
		},
		{
			name:   "restricted set fully used",
			coupon: Coupon{Code: "SOME", ProductIDs: []string{"p1"}},
			used:   map[string]struct{}{"p1": {}},
			reason: ReasonAlreadyUsed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FilterEligible(&tt.coupon, lines, tt.used)

			if tt.reason != "" {
				var rej *Rejection
				require.ErrorAs(t, err, &rej)
				assert.Equal(t, tt.reason, rej.Reason)
				return
			}

			require.NoError(t, err)
			ids := make([]string, len(got))
			for i, l := range got {
				ids[i] = l.ProductID
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestFilterEligible_Idempotent(t *testing.T) {
	c := Coupon{Code: "SOME", ProductIDs: []string{"p1", "p2"}}
	lines := []Line{
		{ProductID: "p1", UnitPrice: dec("10"), Quantity: 1},
		{ProductID: "p2", UnitPrice: dec("20"), Quantity: 1},
		{ProductID: "p3", UnitPrice: dec("30"), Quantity: 1},
	}
	used := map[string]struct{}{"p2": {}}

	once, err := FilterEligible(&c, lines, used)
	require.NoError(t, err)

	twice, err := FilterEligible(&c, once, used)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestFilterEligible_DoesNotModifyInput(t *testing.T) {
	c := Coupon{Code: "SOME", ProductIDs: []string{"p2"}}
	lines := []Line{
		{ProductID: "p1", UnitPrice: dec("10"), Quantity: 1},
		{ProductID: "p2", UnitPrice: dec("20"), Quantity: 1},
	}

	_, err := FilterEligible(&c, lines, nil)
	require.NoError(t, err)

	assert.Equal(t, "p1", lines[0].ProductID)
	assert.Equal(t, "p2", lines[1].ProductID)
}
