package aggregate

import (
	"context"

	"github.com/dvloznov/bill-intelligence/internal/domain"
)

// Stat counts bills and sums their amounts.
type Stat struct {
	Count       int     `json:"count"`
	TotalAmount float64 `json:"total_amount"`
}

// Summary is the per-user overview returned by the stats endpoint.
type Summary struct {
	TotalBills         int                      `json:"total_bills"`
	BillsNeedingReview int                      `json:"bills_needing_review"`
	MonthlyStats       map[string]Stat          `json:"monthly_stats"`
	TypeStats          map[domain.BillType]Stat `json:"type_stats"`
}

// Summarize computes per-month and per-type totals. Unlike Series, months
// with a zero total are kept.
func Summarize(ctx context.Context, bills []*domain.BillRecord) Summary {
	s := Summary{
		TotalBills:   len(bills),
		MonthlyStats: make(map[string]Stat),
		TypeStats:    make(map[domain.BillType]Stat),
	}

	for _, b := range Buckets(ctx, bills) {
		s.MonthlyStats[b.Month] = Stat{Count: b.BillCount, TotalAmount: round2(b.TotalAmount)}
	}

	for _, bill := range bills {
		if bill.NeedsManualReview() {
			s.BillsNeedingReview++
		}
		billType := bill.BillType
		if billType == "" {
			billType = domain.BillTypeUnknown
		}
		amount, _ := BillAmount(bill)
		st := s.TypeStats[billType]
		st.Count++
		st.TotalAmount = round2(st.TotalAmount + amount)
		s.TypeStats[billType] = st
	}
	return s
}
