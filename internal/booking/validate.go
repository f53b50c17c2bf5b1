// Package booking holds the reservation draft, its submission preconditions
// and the per-session booking flow.
package booking

import (
	"errors"
	"strings"
)

// DefaultContactThreshold is the party size from which email or phone is required.
const DefaultContactThreshold = 6

var (
	ErrMissingCustomerName = errors.New("customer name is required")
	ErrNoTableSelected     = errors.New("select at least one table")
	ErrMissingContactInfo  = errors.New("email or phone is required for large parties")
	ErrStaleAvailability   = errors.New("check availability for this slot before booking")
)

// ValidationError is a failed submission precondition. It unwraps to one of
// the Err* sentinels above.
type ValidationError struct {
	Reason  string `json:"reason"`
	Field   string `json:"field"`
	Message string `json:"message"`
	err     error
}

func (e *ValidationError) Error() string { return e.Message }
func (e *ValidationError) Unwrap() error { return e.err }

func invalid(err error, reason, field string) *ValidationError {
	return &ValidationError{Reason: reason, Field: field, Message: err.Error(), err: err}
}

// Validator checks a draft before it is sent upstream.
type Validator struct {
	ContactThreshold int
}

func (v Validator) threshold() int {
	if v.ContactThreshold <= 0 {
		return DefaultContactThreshold
	}
	return v.ContactThreshold
}

// Validate returns the first failed precondition, in this order: customer
// name, table selection, contact info, fresh availability.
func (v Validator) Validate(d Draft) error {
	if strings.TrimSpace(d.Customer.Name) == "" {
		return invalid(ErrMissingCustomerName, "missing_customer_name", "customer.name")
	}
	if len(d.TableIDs) == 0 {
		return invalid(ErrNoTableSelected, "no_table_selected", "table_ids")
	}
	if d.PartySize >= v.threshold() && !hasContact(d) {
		return invalid(ErrMissingContactInfo, "missing_contact_info", "customer.email")
	}
	if d.ConfirmedSlot == "" || d.ConfirmedSlot != d.Request().Key() {
		return invalid(ErrStaleAvailability, "stale_availability", "start_time")
	}
	return nil
}

func hasContact(d Draft) bool {
	return strings.TrimSpace(d.Customer.Email) != "" || strings.TrimSpace(d.Customer.Phone) != ""
}
