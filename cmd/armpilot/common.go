package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/gwillem/armpilot/pkg/config"
	"github.com/gwillem/armpilot/pkg/transport"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// loadConfig applies the global flags on top of the loaded configuration.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	if opts.Server != "" {
		cfg.ServerURL = opts.Server
	}
	return cfg, nil
}

// newClientID identifies this console to the server in both the socket auth
// payload and REST headers.
func newClientID() string {
	return "armpilot-" + uuid.NewString()
}

func newAPI(cfg config.Config, clientID string) *transport.API {
	return transport.NewAPI(transport.APIConfig{
		ServerURL: cfg.ServerURL,
		ClientID:  clientID,
		Timeout:   cfg.RequestTimeout,
	})
}
