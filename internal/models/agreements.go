package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Agreement is the negotiated installment plan for a debt.
type Agreement struct {
	ID               string          `json:"id"`
	DebtID           string          `json:"debt_id"`
	InstallmentCount int             `json:"installment_count"`
	InstallmentValue decimal.Decimal `json:"installment_value"`
	UpdatedValue     decimal.Decimal `json:"updated_value"`
	TotalValue       decimal.Decimal `json:"total_value"`
	Protocol         string          `json:"protocol"`
	Approved         bool            `json:"approved"`
	CreatedBy        string          `json:"created_by,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}
