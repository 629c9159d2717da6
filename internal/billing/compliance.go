package billing

import (
	"fmt"
	"strings"

	"pharmabill/backend/internal/domain"
)

type GateState string

const (
	GateClear   GateState = "CLEAR"
	GateBlocked GateState = "BLOCKED"
)

// GateDecision is the outcome of one compliance evaluation.
type GateDecision struct {
	State GateState
	// RecordRequired is set when at least one line is Schedule H1, whether or
	// not the record on file already satisfies it.
	RecordRequired bool
	Reason         string
	H1Products     []string
}

// EvaluateCompliance decides whether checkout may proceed. It is evaluated
// from scratch on every attempt; nothing is remembered between calls.
func EvaluateCompliance(lines []domain.CartLine, record domain.ComplianceRecord) GateDecision {
	var restricted []string
	for _, line := range lines {
		if line.Product.Schedule.RequiresPrescriberRecord() {
			restricted = append(restricted, line.Product.Name)
		}
	}
	if len(restricted) == 0 {
		return GateDecision{State: GateClear}
	}
	if record.Complete() {
		return GateDecision{State: GateClear, RecordRequired: true, H1Products: restricted}
	}

	var missing []string
	if strings.TrimSpace(record.DoctorName) == "" {
		missing = append(missing, "doctor name")
	}
	if strings.TrimSpace(record.PatientName) == "" {
		missing = append(missing, "patient name")
	}
	return GateDecision{
		State:          GateBlocked,
		RecordRequired: true,
		Reason: fmt.Sprintf(
			"schedule H1 drugs in bill (%s); %s required",
			strings.Join(restricted, ", "),
			strings.Join(missing, " and "),
		),
		H1Products: restricted,
	}
}
