package service

import (
	"context"
	"time"

	"einvoice/internal/model"
	"einvoice/internal/repository"

	"github.com/shopspring/decimal"
)

type StatisticsService interface {
	GetSummary(ctx context.Context, actor Actor, startDate, endDate time.Time) (model.DashboardSummary, error)
}

type statisticsService struct {
	invoiceRepo repository.InvoiceRepository
}

func NewStatisticsService(invoiceRepo repository.InvoiceRepository) StatisticsService {
	return &statisticsService{invoiceRepo: invoiceRepo}
}

// GetSummary counts and sums the organization's invoices per status for
// invoices created in [startDate, endDate]. Every status is listed, with
// zeros when there are no invoices in it.
func (s *statisticsService) GetSummary(ctx context.Context, actor Actor, startDate, endDate time.Time) (model.DashboardSummary, error) {
	orgID, err := actor.orgID()
	if err != nil {
		return model.DashboardSummary{}, err
	}

	rows, err := s.invoiceRepo.SummaryByStatus(ctx, orgID, startDate, endDate)
	if err != nil {
		return model.DashboardSummary{}, err
	}
	byStatus := make(map[string]model.StatusTotals, len(rows))
	for _, r := range rows {
		byStatus[r.Status] = r
	}

	summary := model.DashboardSummary{
		TimeRangeStartDate: startDate,
		TimeRangeEndDate:   endDate,
		SubmittedTaxAmount: decimal.Zero,
	}
	for _, status := range []string{
		model.InvoiceStatusDraft,
		model.InvoiceStatusValidated,
		model.InvoiceStatusSubmitted,
		model.InvoiceStatusFailed,
	} {
		totals, ok := byStatus[status]
		if !ok {
			totals = model.StatusTotals{Status: status}
		}
		summary.ByStatus = append(summary.ByStatus, totals)
		summary.TotalInvoices += totals.Count
		if status == model.InvoiceStatusSubmitted {
			summary.SubmittedTaxAmount = totals.TaxAmount
		}
	}
	return summary, nil
}
