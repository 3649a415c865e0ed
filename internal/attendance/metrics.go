package attendance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var markAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "smartattend_mark_attempts_total",
	Help: "Mark-attendance attempts by outcome.",
}, []string{"outcome"})

const (
	outcomeSuccess   = "success"
	outcomeDuplicate = "duplicate"
	outcomeDevice    = "device_rejected"
	outcomeToken     = "token_rejected"
	outcomeSelfie    = "selfie_rejected"
	outcomeError     = "error"
)
