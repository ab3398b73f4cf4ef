// Package id generates the prefixed, K-sortable identifiers used for every
// entity, in the form "prefix_suffix".
package id

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

type Prefix string

const (
	PrefixUser        Prefix = "usr"
	PrefixProduct     Prefix = "prd"
	PrefixOrder       Prefix = "ord"
	PrefixPayment     Prefix = "pay"
	PrefixApplication Prefix = "capp"
	PrefixReport      Prefix = "rpt"
)

// New generates a new ID with the given prefix. It panics on an invalid
// prefix, which is a programming error.
func New(prefix Prefix) string {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return tid.String()
}

// Check parses s and validates its prefix.
func Check(s string, expected Prefix) error {
	if s == "" {
		return fmt.Errorf("id: parse %q: empty string", s)
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return fmt.Errorf("id: parse %q: %w", s, err)
	}
	if Prefix(tid.Prefix()) != expected {
		return fmt.Errorf("id: expected prefix %q, got %q", expected, tid.Prefix())
	}
	return nil
}

func NewOrderID() string       { return New(PrefixOrder) }
func NewPaymentID() string     { return New(PrefixPayment) }
func NewApplicationID() string { return New(PrefixApplication) }
func NewReportID() string      { return New(PrefixReport) }
func NewUserID() string        { return New(PrefixUser) }
