// Package report builds the admin XLSX exports.
package report

import (
	"github.com/xuri/excelize/v2"

	"github.com/surajsatyarthi/antigravity-directory/internal/app/entity"
)

const payoutSheet = "Payout Requests"

var payoutHeaders = []string{
	"ID", "Creator ID", "Amount", "Currency", "Method", "Account Details",
	"Status", "Admin ID", "Rejection Reason", "Processed At", "Created At",
}

// BuildPayoutReport renders one row per payout request. Amounts stay in
// minor units; finance converts on their side.
func BuildPayoutReport(payouts []entity.PayoutRequest) (*excelize.File, error) {
	f := excelize.NewFile()
	index, err := f.NewSheet(payoutSheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	for i, header := range payoutHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(payoutSheet, cell, header); err != nil {
			return nil, err
		}
	}

	for row, p := range payouts {
		values := []interface{}{
			p.PayoutID, p.CreatorID, p.Amount, p.Currency, p.PaymentMethod,
			p.AccountDetails, p.Status, p.AdminID, p.RejectionReason,
			p.ProcessedAt, p.CreatedAt,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(payoutSheet, cell, v); err != nil {
				return nil, err
			}
		}
	}

	return f, nil
}
