package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusApproved  OrderStatus = "approved"
	OrderStatusRejected  OrderStatus = "rejected"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusPaid      OrderStatus = "paid"
)

// Orders are created completed. The pending/approved/rejected states only
// exist so that rows written by the old admin approval flow still decode.
var validNext = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusPending:   {OrderStatusApproved: true, OrderStatusRejected: true},
	OrderStatusApproved:  {OrderStatusCompleted: true, OrderStatusPaid: true},
	OrderStatusCompleted: {OrderStatusPaid: true},
}

func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}

type PaymentMethod string

const (
	MethodCash     PaymentMethod = "cash"
	MethodTransfer PaymentMethod = "transfer"
	MethodCOD      PaymentMethod = "cod"
	MethodEWallet  PaymentMethod = "e-wallet"
	MethodPaylater PaymentMethod = "paylater"
)

// ValidCheckoutMethod reports whether m can pay for a new order.
func ValidCheckoutMethod(m PaymentMethod) bool {
	switch m {
	case MethodCash, MethodTransfer, MethodCOD, MethodPaylater:
		return true
	}
	return false
}

// ValidRepaymentMethod reports whether m can settle a paylater bill.
func ValidRepaymentMethod(m PaymentMethod) bool {
	switch m {
	case MethodCash, MethodTransfer, MethodEWallet:
		return true
	}
	return false
}

type LineItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice Money  `json:"unit_price"`
}

func (li LineItem) Subtotal() Money {
	return li.UnitPrice * Money(li.Quantity)
}

type Order struct {
	ID            string        `json:"id"`
	OwnerID       string        `json:"owner_id"`
	Items         []LineItem    `json:"items"`
	Total         Money         `json:"total"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Status        OrderStatus   `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	DueDate       *time.Time    `json:"due_date,omitempty"`

	// Derived from payments on read.
	Paid      Money `json:"paid"`
	Remaining Money `json:"remaining"`
}

func (o *Order) IsPaylater() bool { return o.PaymentMethod == MethodPaylater }

// Total sums unit price times quantity over items.
func Total(items []LineItem) Money {
	var total Money
	for _, item := range items {
		total += item.Subtotal()
	}
	return total
}

type Payment struct {
	ID        string        `json:"id"`
	OrderID   string        `json:"order_id"`
	OwnerID   string        `json:"owner_id"`
	Amount    Money         `json:"amount"`
	Method    PaymentMethod `json:"method"`
	Note      string        `json:"note,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// SumPayments adds up payment amounts.
func SumPayments(payments []Payment) Money {
	var paid Money
	for _, p := range payments {
		paid += p.Amount
	}
	return paid
}

// Remaining is max(total - paid, 0).
func Remaining(total, paid Money) Money {
	if paid >= total {
		return 0
	}
	return total - paid
}
