package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var voiceCommandsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "voicehome",
		Name:      "voice_commands_total",
		Help:      "Voice commands processed, by classified action and final status.",
	},
	[]string{"action", "status"},
)
