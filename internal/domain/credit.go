package domain

import "time"

type AccountStatus string

const AccountStatusActive AccountStatus = "active"

// CreditAccount is a customer's paylater line. 0 <= Used <= Limit holds after
// every mutation.
type CreditAccount struct {
	OwnerID   string        `json:"owner_id"`
	Limit     Money         `json:"limit"`
	Used      Money         `json:"used"`
	Status    AccountStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func (a *CreditAccount) Available() Money {
	if a.Used >= a.Limit {
		return 0
	}
	return a.Limit - a.Used
}

type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

func (s ApplicationStatus) Resolved() bool {
	return s == ApplicationApproved || s == ApplicationRejected
}

type CreditApplication struct {
	ID             string            `json:"id"`
	OwnerID        string            `json:"owner_id"`
	RequestedLimit Money             `json:"requested_limit"`
	Reason         string            `json:"reason"`
	Status         ApplicationStatus `json:"status"`
	CreatedAt      time.Time         `json:"created_at"`
	ApprovedAt     *time.Time        `json:"approved_at,omitempty"`
	ResolvedAt     *time.Time        `json:"resolved_at,omitempty"`
	Notified       bool              `json:"notified"`
}
