package splits

import (
	"errors"
	"math/big"
	"testing"
	"time"
)

func TestPayoutAmount(t *testing.T) {
	tests := []struct {
		name    string
		total   int64
		percent uint32
		want    int64
	}{
		{"half", 1000, TotalPercent / 2, 500},
		{"full", 1000, TotalPercent, 1000},
		{"floors", 1000, 333_333_333, 333},
		{"tiny total rounds to zero", 2, 333_333_333, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PayoutAmount(big.NewInt(tt.total), tt.percent)
			if got.Int64() != tt.want {
				t.Errorf("PayoutAmount(%d, %d) = %s, want %d", tt.total, tt.percent, got, tt.want)
			}
		})
	}
}

func TestValidateGroup(t *testing.T) {
	tests := []struct {
		name    string
		group   []Split
		wantErr error
	}{
		{"empty", nil, nil},
		{"exact total", []Split{{Percent: TotalPercent}}, nil},
		{"under total", []Split{{Percent: 1}, {Percent: 2}}, nil},
		{"zero percent", []Split{{Percent: 0}}, ErrZeroPercent},
		{"over total", []Split{{Percent: TotalPercent}, {Percent: 1}}, ErrOverTotalPercent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGroup(tt.group)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateGroup() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLocked(t *testing.T) {
	now := time.Now()

	unlocked := Split{Percent: 1}
	if unlocked.Locked(now) {
		t.Error("split without LockedUntil should not be locked")
	}

	locked := Split{Percent: 1, LockedUntil: now.Add(time.Hour)}
	if !locked.Locked(now) {
		t.Error("split with future LockedUntil should be locked")
	}
	if locked.Locked(now.Add(2 * time.Hour)) {
		t.Error("split past LockedUntil should be unlocked")
	}
}
