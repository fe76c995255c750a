package presale

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"presale-ledger/internal/domain"
)

func TestAdvance(t *testing.T) {
	cfg := &domain.Config{
		StartTime: startTime,
		EndTime:   endTime,
		SoftCap:   dec(100),
		HardCap:   dec(500),
	}

	tests := []struct {
		name        string
		now         uint64
		status      domain.SaleStatus
		raised      int64
		wantStatus  domain.SaleStatus
		wantChanged bool
	}{
		{"pending before start", startTime - 1, domain.StatusPending, 0, domain.StatusPending, false},
		{"pending at start", startTime, domain.StatusPending, 0, domain.StatusActive, true},
		{"active before end", endTime - 1, domain.StatusActive, 0, domain.StatusActive, false},
		{"active at end below soft cap", endTime, domain.StatusActive, 99, domain.StatusFailed, true},
		{"active at end at soft cap", endTime, domain.StatusActive, 100, domain.StatusSucceeded, true},
		{"pending past end", endTime + 10, domain.StatusPending, 0, domain.StatusFailed, true},
		{"succeeded early stays", startTime + 1, domain.StatusSucceeded, 500, domain.StatusSucceeded, false},
		{"succeeded later stays", endTime + 1000, domain.StatusSucceeded, 500, domain.StatusSucceeded, false},
		{"failed stays", endTime + 1000, domain.StatusFailed, 0, domain.StatusFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := domain.SaleState{Status: tt.status, TotalRaised: decimal.NewFromInt(tt.raised)}
			got, changed := Advance(tt.now, cfg, st)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantChanged, changed)
			assert.True(t, got.TotalRaised.Equal(st.TotalRaised))
		})
	}
}

func TestAdvance_NeverRegresses(t *testing.T) {
	cfg := &domain.Config{StartTime: startTime, EndTime: endTime, SoftCap: dec(100)}
	statuses := []domain.SaleStatus{domain.StatusPending, domain.StatusActive, domain.StatusSucceeded, domain.StatusFailed}

	for _, s := range statuses {
		for now := uint64(0); now <= endTime+500; now += 250 {
			got, _ := Advance(now, cfg, domain.SaleState{Status: s, TotalRaised: dec(50)})
			assert.GreaterOrEqual(t, got.Status.Rank(), s.Rank(), "status %s at %d", s, now)
			if s.IsFinal() {
				assert.Equal(t, s, got.Status)
			}
		}
	}
}
