package billing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"pharmabill/backend/internal/domain"
)

func decimalFromInt(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func TestSessionOwnsOneCart(t *testing.T) {
	sess := NewSession("sess-1", "pharmacist", newTestEngine())
	sess.Cart().AddLine(product(1, "Dolo 650", "22.5", domain.ScheduleGeneral))

	require.Same(t, sess.Cart(), sess.Cart())
	require.Equal(t, 1, sess.Cart().Len())
}

func TestSessionCheckoutStampsSession(t *testing.T) {
	sess := NewSession("sess-1", "pharmacist", newTestEngine())
	sess.Cart().AddLine(product(1, "Dolo 650", "22.5", domain.ScheduleGeneral))

	invoice, err := sess.Checkout()
	require.NoError(t, err)
	require.Equal(t, "sess-1", invoice.SessionID)
	require.Equal(t, "pharmacist", invoice.CreatedBy)
}

func TestSessionViewCarriesGSTEstimateRate(t *testing.T) {
	sess := NewSession("sess-1", "pharmacist", newTestEngine())
	sess.Cart().AddLine(product(1, "Dolo 650", "22.5", domain.ScheduleGeneral))

	view := sess.View()
	requireAmount(t, "12", view.GSTEstimateRate)
	requireAmount(t, "2.7", view.GSTEstimate)
}

func TestSessionViewFlagsH1(t *testing.T) {
	sess := NewSession("sess-1", "pharmacist", newTestEngine())
	sess.Cart().AddLine(product(2, "Augmentin 625", "160", domain.ScheduleH1))
	sess.Cart().SetCompliance(domain.ComplianceRecord{DoctorName: "Dr. A", PatientName: "P"})

	view := sess.View()
	require.True(t, view.RequiresH1)
	requireAmount(t, "160", view.TaxableAmount)
	requireAmount(t, "179.2", view.PayableAmount)
	require.Equal(t, "Dr. A", view.Compliance.DoctorName)
}

func TestShortcutFor(t *testing.T) {
	require.Equal(t, ShortcutNewBill, ShortcutFor("F2"))
	require.Equal(t, ShortcutCheckout, ShortcutFor("f10"))
	require.Equal(t, ShortcutNone, ShortcutFor("Delete"))
}

func TestSessionComplianceStatus(t *testing.T) {
	sess := NewSession("sess-1", "pharmacist", newTestEngine())
	require.Equal(t, "CLEAR", sess.ComplianceStatus().State)

	sess.Cart().AddLine(product(5, "Azithral 500", "55", domain.ScheduleH1))
	status := sess.ComplianceStatus()
	require.Equal(t, "BLOCKED", status.State)
	require.True(t, status.RecordRequired)
	require.Equal(t, []string{"Azithral 500"}, status.H1Products)

	sess.Cart().SetCompliance(domain.ComplianceRecord{DoctorName: "Dr. A", PatientName: "P"})
	require.Equal(t, "CLEAR", sess.ComplianceStatus().State)
}
