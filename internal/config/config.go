// Package config provides configuration types and loading for medboard.
package config

import (
	"github.com/medboard/medboard/internal/contacts"
	"github.com/medboard/medboard/internal/outlet"
)

// Config is the root configuration struct.
// Top-level groups: Outlet, Discord, Contacts, Board.
type Config struct {
	Outlet   outlet.Config      `json:"outlet"`
	Discord  DiscordConfig      `json:"discord"`
	Contacts []contacts.Contact `json:"contacts"`
	Board    BoardConfig        `json:"board"`
}

// ---------------------------------------------------------------------------
// Discord – caregiver messaging
// ---------------------------------------------------------------------------

// DiscordConfig configures the Discord channel.
type DiscordConfig struct {
	Enabled       bool   `json:"enabled" split_words:"true"`
	Token         string `json:"token" split_words:"true"`
	EmergencyText string `json:"emergencyText" split_words:"true"`
}

// ---------------------------------------------------------------------------
// Board – the patient-facing screen
// ---------------------------------------------------------------------------

// BoardConfig configures the board layout and the outlets it drives.
type BoardConfig struct {
	EmergencyOutlet int      `json:"emergencyOutlet" split_words:"true"`
	LampOutlet      int      `json:"lampOutlet" split_words:"true"`
	Messages        []string `json:"messages" ignored:"true"`
	LogFile         string   `json:"logFile" split_words:"true"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Outlet: outlet.DefaultConfig(),
		Discord: DiscordConfig{
			Enabled:       true,
			EmergencyText: "Urgence ⚠️",
		},
		Board: BoardConfig{
			EmergencyOutlet: 5,
			LampOutlet:      6,
			Messages: []string{
				"J'ai besoin d'aide.",
				"J'ai faim.",
				"J'ai soif.",
				"J'ai besoin d'aller aux toilettes.",
				"J’ai envie de discuter.",
				"Je ne me sens pas bien !",
				"Peux-tu me mettre au lit ?",
				"J'ai besoin d'envoyer un message, peux-tu m'aider ?",
			},
			LogFile: "~/.medboard/board.log",
		},
	}
}

// Registry builds the contact registry from the configured contacts.
func (c *Config) Registry() (*contacts.Registry, error) {
	return contacts.New(c.Contacts)
}
