package domain

import "time"

// ViolationType identifies which deadline was missed.
type ViolationType string

const (
	ViolationFirstResponse ViolationType = "first_response"
	ViolationResolution    ViolationType = "resolution"
)

// SLAViolation is an append-only record that a deadline was missed.
type SLAViolation struct {
	ID            string
	TicketID      string
	ViolationType ViolationType
	ExpectedAt    time.Time
	ViolatedAt    time.Time
}
