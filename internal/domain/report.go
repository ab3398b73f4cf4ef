package domain

import "time"

type ReportType string

const (
	ReportIncome  ReportType = "income"
	ReportExpense ReportType = "expense"
)

type ReportEntry struct {
	ID          string     `json:"id"`
	Type        ReportType `json:"type"`
	Description string     `json:"description"`
	Amount      Money      `json:"amount"`
	CreatedAt   time.Time  `json:"created_at"`
}

type ExpenseCategory string

const (
	ExpenseSalary        ExpenseCategory = "gaji"
	ExpenseFuel          ExpenseCategory = "bbm"
	ExpenseStockPurchase ExpenseCategory = "pembelian_stok"
	ExpenseOther         ExpenseCategory = "lainnya"
)

func ValidExpenseCategory(c ExpenseCategory) bool {
	switch c {
	case ExpenseSalary, ExpenseFuel, ExpenseStockPurchase, ExpenseOther:
		return true
	}
	return false
}
