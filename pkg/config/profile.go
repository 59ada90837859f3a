// Package config loads a fabric session profile: the set of
// construction parameters spec.md §4.8 and §6.1 hand to a session
// (listen/dial address, wire sentinels, worker counts, echo interval,
// transform flags, snipping targets). Layering follows the teacher
// repo's convention (base file, then environment variable overrides);
// files are YAML (gopkg.in/yaml.v3) or JSON-as-YAML, matching how the
// teacher's crypto-stream service reads its watchlist profile.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile is the full set of parameters needed to construct a Session.
type Profile struct {
	ListenAddr string `yaml:"listen_addr"`
	DialAddr   string `yaml:"dial_addr"`

	SourceID    string `yaml:"source_id"`
	SourceSubID string `yaml:"source_sub_id"`

	StartByte byte `yaml:"start_byte"`
	EndByte   byte `yaml:"end_byte"`
	// MaxFrameBytes bounds the declared length field; frames over this
	// are treated as a frame error (spec.md §7) rather than read.
	MaxFrameBytes uint32 `yaml:"max_frame_bytes"`

	HighPriorityWorkers   int `yaml:"high_priority_workers"`
	NormalPriorityWorkers int `yaml:"normal_priority_workers"`
	LowPriorityWorkers    int `yaml:"low_priority_workers"`

	AutoEcho             bool          `yaml:"auto_echo"`
	EchoInterval          time.Duration `yaml:"echo_interval"`
	ConnectionKey         string        `yaml:"connection_key"`
	CompressMode          bool          `yaml:"compress_mode"`
	CompressionAlgorithm  string        `yaml:"compression_algorithm"` // gzip|zstd|lz4
	EncryptMode           bool          `yaml:"encrypt_mode"`
	BridgeLine            bool          `yaml:"bridge_line"`
	SnippingTargets       []string      `yaml:"snipping_targets"`
}

// Default returns a profile with the same conservative defaults the
// original carries: three single-worker priority classes, echo off,
// transforms off, a 16 MiB frame ceiling.
func Default() Profile {
	return Profile{
		StartByte:             0xCB,
		EndByte:               0xCE,
		MaxFrameBytes:         16 * 1024 * 1024,
		HighPriorityWorkers:   1,
		NormalPriorityWorkers: 1,
		LowPriorityWorkers:    1,
		EchoInterval:          30 * time.Second,
		CompressionAlgorithm:  "gzip",
	}
}

// Load reads a base profile from path (YAML, or JSON — a valid JSON
// document is valid YAML), then applies environment variable
// overrides under the given prefix (e.g. prefix "FABRIC_" turns
// FABRIC_LISTEN_ADDR into ListenAddr).
func Load(path string, envPrefix string) (Profile, error) {
	p := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Profile{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &p); err != nil {
			return Profile{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnvOverrides(&p, envPrefix)

	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Validate enforces the invariants a Session relies on at construction.
func (p Profile) Validate() error {
	if p.StartByte == p.EndByte {
		return fmt.Errorf("config: start_byte and end_byte must differ")
	}
	if p.MaxFrameBytes == 0 {
		return fmt.Errorf("config: max_frame_bytes must be > 0")
	}
	if p.HighPriorityWorkers < 0 || p.NormalPriorityWorkers < 0 || p.LowPriorityWorkers < 0 {
		return fmt.Errorf("config: worker counts must be >= 0")
	}
	return nil
}

func applyEnvOverrides(p *Profile, prefix string) {
	if prefix == "" {
		return
	}
	get := func(name string) (string, bool) {
		v, ok := os.LookupEnv(prefix + name)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}
	if v, ok := get("LISTEN_ADDR"); ok {
		p.ListenAddr = v
	}
	if v, ok := get("DIAL_ADDR"); ok {
		p.DialAddr = v
	}
	if v, ok := get("SOURCE_ID"); ok {
		p.SourceID = v
	}
	if v, ok := get("SOURCE_SUB_ID"); ok {
		p.SourceSubID = v
	}
	if v, ok := get("CONNECTION_KEY"); ok {
		p.ConnectionKey = v
	}
	if v, ok := get("COMPRESSION_ALGORITHM"); ok {
		p.CompressionAlgorithm = v
	}
	if v, ok := get("COMPRESS_MODE"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			p.CompressMode = b
		}
	}
	if v, ok := get("ENCRYPT_MODE"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			p.EncryptMode = b
		}
	}
	if v, ok := get("AUTO_ECHO"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			p.AutoEcho = b
		}
	}
	if v, ok := get("ECHO_INTERVAL"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			p.EchoInterval = d
		}
	}
	if v, ok := get("SNIPPING_TARGETS"); ok {
		p.SnippingTargets = splitNonEmpty(v, ",")
	}
}

func splitNonEmpty(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
