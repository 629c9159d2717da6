package billing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"pharmabill/backend/internal/domain"
)

func linesOf(products ...domain.Product) []domain.CartLine {
	cart := NewCart()
	for _, p := range products {
		cart.AddLine(p)
	}
	return cart.Lines()
}

func TestGateClearWithoutH1(t *testing.T) {
	lines := linesOf(
		product(1, "Dolo", "22.5", domain.ScheduleGeneral),
		product(2, "Corex", "95", domain.ScheduleH),
		product(3, "Narcotic", "50", domain.ScheduleX),
	)
	decision := EvaluateCompliance(lines, domain.ComplianceRecord{})
	require.Equal(t, GateClear, decision.State)
	require.False(t, decision.RecordRequired)
}

func TestGateBlockedForH1WithoutRecord(t *testing.T) {
	lines := linesOf(product(2, "Augmentin 625", "160", domain.ScheduleH1))

	decision := EvaluateCompliance(lines, domain.ComplianceRecord{})
	require.Equal(t, GateBlocked, decision.State)
	require.Contains(t, decision.Reason, "Augmentin 625")
	require.Contains(t, decision.Reason, "doctor name and patient name")

	decision = EvaluateCompliance(lines, domain.ComplianceRecord{DoctorName: "Dr. A", PatientName: "   "})
	require.Equal(t, GateBlocked, decision.State)
	require.Contains(t, decision.Reason, "patient name")
}

func TestGateClearForH1WithRecord(t *testing.T) {
	lines := linesOf(product(2, "Augmentin 625", "160", domain.ScheduleH1))

	decision := EvaluateCompliance(lines, domain.ComplianceRecord{DoctorName: "Dr. A", PatientName: "P"})
	require.Equal(t, GateClear, decision.State)
	require.True(t, decision.RecordRequired)
	require.Equal(t, []string{"Augmentin 625"}, decision.H1Products)
}

func TestGateIgnoresRxNumber(t *testing.T) {
	lines := linesOf(product(2, "Azithral 500", "55", domain.ScheduleH1))

	decision := EvaluateCompliance(lines, domain.ComplianceRecord{RxNumber: "Rx12345"})
	require.Equal(t, GateBlocked, decision.State)
}
