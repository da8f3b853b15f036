// Package tuning loads the simulation timing constants from YAML.
package tuning

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz     int `yaml:"tick_rate_hz"`
	MaxTickFactor  int `yaml:"max_tick_factor"`
	UndoCapacity   int `yaml:"undo_capacity"`
	AdjacencyTicks int `yaml:"adjacency_ticks"`

	RecordWindowMs int `yaml:"record_window_ms"`
	RecordMinGapMs int `yaml:"record_min_gap_ms"`
	TakeItemAnimMs int `yaml:"take_item_anim_ms"`

	TileMailboxSize int `yaml:"tile_mailbox_size"`
	GameInboxSize   int `yaml:"game_inbox_size"`

	MapRoot string `yaml:"map_root"`
}

// Defaults returns the shipped tuning values.
func Defaults() Tuning {
	return Tuning{
		TickRateHz:      30,
		MaxTickFactor:   5,
		UndoCapacity:    16,
		AdjacencyTicks:  10,
		RecordWindowMs:  800,
		RecordMinGapMs:  250,
		TakeItemAnimMs:  200,
		TileMailboxSize: 256,
		GameInboxSize:   4096,
		MapRoot:         "map",
	}
}

// Load reads path, filling any zero field from Defaults. A missing
// file yields Defaults with no error.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	d := Defaults()
	if t.TickRateHz <= 0 {
		t.TickRateHz = d.TickRateHz
	}
	if t.MaxTickFactor <= 0 {
		t.MaxTickFactor = d.MaxTickFactor
	}
	if t.UndoCapacity <= 0 {
		t.UndoCapacity = d.UndoCapacity
	}
	if t.AdjacencyTicks <= 0 {
		t.AdjacencyTicks = d.AdjacencyTicks
	}
	if t.RecordWindowMs <= 0 {
		t.RecordWindowMs = d.RecordWindowMs
	}
	if t.RecordMinGapMs <= 0 {
		t.RecordMinGapMs = d.RecordMinGapMs
	}
	if t.TakeItemAnimMs <= 0 {
		t.TakeItemAnimMs = d.TakeItemAnimMs
	}
	if t.TileMailboxSize <= 0 {
		t.TileMailboxSize = d.TileMailboxSize
	}
	if t.GameInboxSize <= 0 {
		t.GameInboxSize = d.GameInboxSize
	}
	if t.MapRoot == "" {
		t.MapRoot = d.MapRoot
	}
	return t, nil
}

// TickInterval is the target wall time of one tick.
func (t Tuning) TickInterval() time.Duration {
	return time.Second / time.Duration(t.TickRateHz)
}

// MaxTickDuration is the wall time past which a tick logs a warning.
func (t Tuning) MaxTickDuration() time.Duration {
	return t.TickInterval() * time.Duration(t.MaxTickFactor)
}

func (t Tuning) RecordWindow() time.Duration {
	return time.Duration(t.RecordWindowMs) * time.Millisecond
}

func (t Tuning) RecordMinGap() time.Duration {
	return time.Duration(t.RecordMinGapMs) * time.Millisecond
}
