package domain

// SaleStatus represents the lifecycle phase of a sale.
type SaleStatus string

const (
	StatusPending   SaleStatus = "PENDING"
	StatusActive    SaleStatus = "ACTIVE"
	StatusSucceeded SaleStatus = "SUCCEEDED"
	StatusFailed    SaleStatus = "FAILED"
)

// String returns the string representation of SaleStatus.
func (s SaleStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a valid value.
func (s SaleStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusActive, StatusSucceeded, StatusFailed:
		return true
	}
	return false
}

// IsFinal reports whether the sale has been decided.
// Final statuses never change again.
func (s SaleStatus) IsFinal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Rank orders statuses along Pending -> Active -> {Succeeded, Failed}.
// Succeeded and Failed share the same rank.
func (s SaleStatus) Rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusActive:
		return 1
	case StatusSucceeded, StatusFailed:
		return 2
	}
	return -1
}
