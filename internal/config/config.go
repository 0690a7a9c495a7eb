// Package config persists the tool settings: driver and termination
// parameters, the transient window, and the solver options, stored as
// grouped JSON in the platform config directory.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/signalpathlab/cct/pkg/aedt"
	"github.com/signalpathlab/cct/pkg/netlist"
)

// TxGroup mirrors the transmit driver dialog.
type TxGroup struct {
	VHigh string `json:"vhigh"`
	TRise string `json:"t_rise"`
	UI    string `json:"ui"`
	Res   string `json:"res_tx"`
	Cap   string `json:"cap_tx"`
}

// RxGroup mirrors the receive termination dialog.
type RxGroup struct {
	Res string `json:"res_rx"`
	Cap string `json:"cap_rx"`
}

// TransientGroup mirrors the analysis window dialog.
type TransientGroup struct {
	TStep string `json:"tstep"`
	TStop string `json:"tstop"`
}

// OptionsGroup carries pruning and solver selection.
type OptionsGroup struct {
	ThresholdDB float64 `json:"threshold_db"`
	Prune       bool    `json:"prune_enabled"`
	Version     string  `json:"circuit_version"`
	Simulate    bool    `json:"simulate"`
}

// PathsGroup remembers the last files the desktop app worked with.
type PathsGroup struct {
	Touchstone string `json:"touchstone,omitempty"`
	Metadata   string `json:"metadata,omitempty"`
	Output     string `json:"output,omitempty"`
}

// Settings is the persisted configuration document.
type Settings struct {
	Tx        TxGroup        `json:"tx"`
	Rx        RxGroup        `json:"rx"`
	Transient TransientGroup `json:"transient"`
	Options   OptionsGroup   `json:"options"`
	Paths     PathsGroup     `json:"paths,omitempty"`
}

// Defaults returns the stock settings.
func Defaults() Settings {
	tx, rx, tr := netlist.DefaultTx(), netlist.DefaultRx(), netlist.DefaultTransient()
	return Settings{
		Tx:        TxGroup{VHigh: tx.VHigh, TRise: tx.TRise, UI: tx.UI, Res: tx.Res, Cap: tx.Cap},
		Rx:        RxGroup{Res: rx.Res, Cap: rx.Cap},
		Transient: TransientGroup{TStep: tr.TStep, TStop: tr.TStop},
		Options: OptionsGroup{
			ThresholdDB: -60,
			Prune:       true,
			Version:     aedt.DefaultVersion,
		},
	}
}

// TxSettings converts the transmit group for the netlist generator.
func (s Settings) TxSettings() netlist.TxSettings {
	return netlist.TxSettings{VHigh: s.Tx.VHigh, TRise: s.Tx.TRise, UI: s.Tx.UI, Res: s.Tx.Res, Cap: s.Tx.Cap}
}

// RxSettings converts the receive group for the netlist generator.
func (s Settings) RxSettings() netlist.RxSettings {
	return netlist.RxSettings{Res: s.Rx.Res, Cap: s.Rx.Cap}
}

// TransientSettings converts the analysis group for the netlist generator.
func (s Settings) TransientSettings() netlist.TransientSettings {
	return netlist.TransientSettings{TStep: s.Transient.TStep, TStop: s.Transient.TStop}
}

// UnmarshalJSON merges a stored document onto the defaults. Two older
// layouts are still accepted: the options group used to be called
// "prune", and the very first releases stored all keys flat at the top
// level.
func (s *Settings) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	merged := Defaults()
	if legacy, ok := raw["prune"]; ok && raw["options"] == nil {
		// Only an object can be the renamed group; a bare value here is
		// part of the flat layout.
		var probe map[string]json.RawMessage
		if json.Unmarshal(legacy, &probe) == nil {
			raw["options"] = legacy
		}
	}

	if _, grouped := raw["tx"]; !grouped {
		// Flat layout: every group reads its keys from the top level.
		for _, dst := range []any{&merged.Tx, &merged.Rx, &merged.Transient, &merged.Options} {
			if err := json.Unmarshal(data, dst); err != nil {
				return err
			}
		}
		*s = merged
		return nil
	}

	groups := map[string]any{
		"tx":        &merged.Tx,
		"rx":        &merged.Rx,
		"transient": &merged.Transient,
		"options":   &merged.Options,
		"paths":     &merged.Paths,
	}
	for key, dst := range groups {
		if msg, ok := raw[key]; ok {
			if err := json.Unmarshal(msg, dst); err != nil {
				return fmt.Errorf("config: group %q: %w", key, err)
			}
		}
	}
	*s = merged
	return nil
}

// Path returns the settings file location, creating the directory. On
// Windows the file lives under %APPDATA%\CCT, elsewhere under
// ~/.config/cct.
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: %w", err)
	}
	var dir string
	if appdata := os.Getenv("APPDATA"); appdata != "" {
		dir = filepath.Join(appdata, "CCT")
	} else {
		dir = filepath.Join(home, ".config", "cct")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("config: %w", err)
	}
	return filepath.Join(dir, "settings.json"), nil
}

// Load reads the settings file, returning defaults when none exists yet.
func Load() (Settings, error) {
	path, err := Path()
	if err != nil {
		return Defaults(), err
	}
	return LoadFile(path)
}

// LoadFile reads settings from an explicit path.
func LoadFile(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Defaults(), nil
		}
		return Defaults(), fmt.Errorf("config: %w", err)
	}
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return Defaults(), fmt.Errorf("config: %s: %w", path, err)
	}
	return s, nil
}

// Save writes the settings to the default location.
func Save(s Settings) error {
	path, err := Path()
	if err != nil {
		return err
	}
	return SaveFile(path, s)
}

// SaveFile writes the settings to an explicit path.
func SaveFile(path string, s Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
