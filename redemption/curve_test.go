package redemption

import (
	"math/big"
	"testing"
)

func params(overflow, count, supply int64, rate uint64) Params {
	return Params{
		Overflow:    big.NewInt(overflow),
		TokenCount:  big.NewInt(count),
		TotalSupply: big.NewInt(supply),
		Rate:        rate,
	}
}

func TestReclaimable(t *testing.T) {
	tests := []struct {
		name string
		p    Params
		want int64
	}{
		{"pro rata at max rate", params(1000, 250, 1000, MaxRate), 250},
		{"full supply reclaims all", params(1000, 1000, 1000, 7000), 1000},
		{"zero rate reclaims nothing", params(1000, 250, 1000, 0), 0},
		{"zero overflow", params(0, 250, 1000, MaxRate), 0},
		{"zero count", params(1000, 0, 1000, MaxRate), 0},
		{"zero supply", params(1000, 250, 0, MaxRate), 0},
		// base = 250; boost = 7000 + 250*3000/1000 = 7750; 250*7750/10000 = 193.
		{"convex below max rate", params(1000, 250, 1000, 7000), 193},
		// base = 100; boost = 5000 + 100*5000/1000 = 5500; 100*5500/10000 = 55.
		{"half rate small claim", params(1000, 100, 1000, 5000), 55},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reclaimable(tt.p)
			if got.Int64() != tt.want {
				t.Errorf("Reclaimable() = %s, want %d", got, tt.want)
			}
		})
	}
}

func TestReclaimableNeverExceedsProRata(t *testing.T) {
	// Below MaxRate the curve must pay at most the pro-rata share.
	for _, rate := range []uint64{1, 2500, 5000, 9999} {
		p := params(1_000_000, 333, 10_000, rate)
		got := Reclaimable(p)
		proRata := Reclaimable(params(1_000_000, 333, 10_000, MaxRate))
		if got.Cmp(proRata) > 0 {
			t.Errorf("rate %d: reclaim %s exceeds pro-rata %s", rate, got, proRata)
		}
	}
}

func TestReclaimableNilInputs(t *testing.T) {
	if got := Reclaimable(Params{Rate: MaxRate}); got.Sign() != 0 {
		t.Errorf("nil inputs reclaim = %s, want 0", got)
	}
}
