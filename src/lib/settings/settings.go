package settings

import (
	"fmt"
	"strings"

	"gopkg.in/ini.v1"
)

// LockFile is where the boot looks for settings.
const LockFile = "/waemon.lock"

// Settings are the knobs a waemon.lock file can turn.
type Settings struct {
	ElfEnabled  bool   // [elf] enabled
	ElfMaxBytes uint64 // [elf] max_bytes
	TickHz      uint64 // [kernel] tick_hz
	MemoryMiB   uint64 // [kernel] memory_mib
	LogLevel    string // [log] level
}

func Default() Settings {
	return Settings{
		ElfEnabled:  true,
		ElfMaxBytes: 4096,
		TickHz:      100,
		MemoryMiB:   16,
		LogLevel:    "info",
	}
}

// Parse reads a lock file over the defaults.  Keys it does not know are
// ignored and a value that does not parse leaves the default in place, so
// only a file that is not ini at all is an error.
func Parse(contents []byte) (Settings, error) {
	s := Default()
	f, err := ini.LoadSources(ini.LoadOptions{
		Insensitive:             true,
		SkipUnrecognizableLines: true,
	}, contents)
	if err != nil {
		return s, fmt.Errorf("settings: %w", err)
	}
	elf := f.Section("elf")
	s.ElfEnabled = parseBool(elf.Key("enabled").String(), s.ElfEnabled)
	s.ElfMaxBytes = parseUint(elf.Key("max_bytes"), s.ElfMaxBytes)

	kernel := f.Section("kernel")
	if hz := parseUint(kernel.Key("tick_hz"), s.TickHz); hz > 0 {
		s.TickHz = hz
	}
	if mib := parseUint(kernel.Key("memory_mib"), s.MemoryMiB); mib > 0 {
		s.MemoryMiB = mib
	}

	if level := strings.TrimSpace(f.Section("log").Key("level").String()); level != "" {
		s.LogLevel = strings.ToLower(strings.Trim(level, `"`))
	}
	return s, nil
}

func parseBool(v string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	return def
}

func parseUint(k *ini.Key, def uint64) uint64 {
	if k.String() == "" {
		return def
	}
	v, err := k.Uint64()
	if err != nil {
		return def
	}
	return v
}

func (s Settings) String() string {
	return fmt.Sprintf("elf=%v max_bytes=%d tick_hz=%d memory=%dMiB log=%s",
		s.ElfEnabled, s.ElfMaxBytes, s.TickHz, s.MemoryMiB, s.LogLevel)
}
