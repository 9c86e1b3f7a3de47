package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts record writes, access decisions and logins.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	EmentaWrites    *prometheus.CounterVec
	AccessDecisions *prometheus.CounterVec
	ProtocoloWrites *prometheus.CounterVec
	Logins          *prometheus.CounterVec
	AccountActions  *prometheus.CounterVec
	SITACSyncs      *prometheus.CounterVec
}

// New registers all metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EmentaWrites: f.NewCounterVec(prometheus.CounterOpts{
			Name: "acervo_ementa_writes_total",
			Help: "Ementa writes by operation (create, update, confidential)",
		}, []string{"op"}),
		AccessDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "acervo_ementa_access_decisions_total",
			Help: "Ementa read decisions by outcome",
		}, []string{"decision"}),
		ProtocoloWrites: f.NewCounterVec(prometheus.CounterOpts{
			Name: "acervo_protocolo_writes_total",
			Help: "Protocolo writes by operation",
		}, []string{"op"}),
		Logins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "acervo_logins_total",
			Help: "Login attempts by result",
		}, []string{"result"}),
		AccountActions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "acervo_account_actions_total",
			Help: "Administrative account actions (register, approve, reject, verify_email)",
		}, []string{"action"}),
		SITACSyncs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "acervo_sitac_sync_total",
			Help: "SITAC registrations by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) EmentaWritten(op string) {
	if m != nil {
		m.EmentaWrites.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) AccessDecided(decision string) {
	if m != nil {
		m.AccessDecisions.WithLabelValues(decision).Inc()
	}
}

func (m *Metrics) ProtocoloWritten(op string) {
	if m != nil {
		m.ProtocoloWrites.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) LoginAttempted(result string) {
	if m != nil {
		m.Logins.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) AccountAction(action string) {
	if m != nil {
		m.AccountActions.WithLabelValues(action).Inc()
	}
}

func (m *Metrics) SITACSynced(result string) {
	if m != nil {
		m.SITACSyncs.WithLabelValues(result).Inc()
	}
}
