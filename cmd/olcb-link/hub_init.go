package main

import "github.com/kstaniek/go-openlcb-link/internal/hub"

// initHub builds the fan-out hub shared by every GridConnect-over-TCP
// client and, for the serial/socketcan backends, mirrors what the
// physical transport sees.
func initHub(cfg appConfig) *hub.Hub {
	h := hub.New()
	h.OutBufSize = cfg.hubBufSize
	h.Policy = hub.PolicyDrop
	return h
}
