package security

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// HardwareIDOverrideEnv is the environment variable a user could set to try
// to impersonate another machine. The override is detected and rejected; the
// computed identity always wins.
const HardwareIDOverrideEnv = "ESMC_HARDWARE_ID"

// noMACPlaceholder stands in for the MAC component when no usable network
// interface is found. Fingerprinting must degrade, never fail.
const noMACPlaceholder = "no-mac"

// Fingerprinter derives a deterministic machine identifier from OS and
// hardware attributes. Results are cached because NIC enumeration and
// /proc reads are comparatively expensive and the identity cannot change
// without a reboot anyway.
type Fingerprinter struct {
	mu          sync.RWMutex
	cached      string
	cacheExpiry time.Time
	cacheTTL    time.Duration
}

// NewFingerprinter creates a fingerprinter with a 1 hour result cache.
func NewFingerprinter() *Fingerprinter {
	return &Fingerprinter{cacheTTL: 1 * time.Hour}
}

// HardwareID returns the hex-encoded machine fingerprint. It never fails:
// individual hardware lookups fall back to placeholder values, and in the
// degenerate case the digest is derived from hostname and architecture
// alone. The result is stable across calls on the same hardware.
func (f *Fingerprinter) HardwareID() string {
	f.mu.RLock()
	if f.cached != "" && time.Now().Before(f.cacheExpiry) {
		id := f.cached
		f.mu.RUnlock()
		return id
	}
	f.mu.RUnlock()

	id := f.compute()

	// An environment override must never be able to change the returned
	// identity. If one is present and disagrees, that is a spoof attempt.
	if override := os.Getenv(HardwareIDOverrideEnv); override != "" && override != id {
		slog.Warn("hardware ID override rejected, using computed value",
			slog.String("override", override),
			slog.String("computed", id),
		)
	}

	f.mu.Lock()
	f.cached = id
	f.cacheExpiry = time.Now().Add(f.cacheTTL)
	f.mu.Unlock()

	return id
}

// compute builds the double-hashed fingerprint. The base digest covers the
// full hardware inventory; the final digest re-combines the base with the
// individual factors so that spoofing a single component is not enough to
// reproduce the identity.
func (f *Fingerprinter) compute() string {
	hostname := readHostname()
	cpu := readCPUModels()
	mem := readTotalMemory()
	macs, primary := readMACAddresses()

	base := sha256Hex(strings.Join([]string{
		runtime.GOOS,
		hostname,
		cpu,
		strconv.FormatUint(mem, 10),
		strings.Join(macs, ","),
	}, "|"))

	cpuShort := cpu
	if len(cpuShort) > 64 {
		cpuShort = cpuShort[:64]
	}

	return sha256Hex(strings.Join([]string{
		base,
		hostname,
		cpuShort,
		strconv.FormatUint(mem, 10),
		runtime.GOARCH,
		primary,
	}, "|"))
}

// FallbackID is the minimal digest used when full hardware inspection is
// unavailable (containers with no NICs exposed, locked-down hosts). Derived
// from hostname and architecture only.
func FallbackID() string {
	return sha256Hex(readHostname() + "|" + runtime.GOARCH)
}

// Components returns the individual fingerprint inputs for debugging.
func (f *Fingerprinter) Components() map[string]string {
	macs, primary := readMACAddresses()
	return map[string]string{
		"platform":    runtime.GOOS,
		"arch":        runtime.GOARCH,
		"hostname":    readHostname(),
		"cpu":         readCPUModels(),
		"memory":      strconv.FormatUint(readTotalMemory(), 10),
		"macs":        strings.Join(macs, ","),
		"primary_mac": primary,
	}
}

// ClearCache drops the cached fingerprint, forcing recomputation.
func (f *Fingerprinter) ClearCache() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cached = ""
	f.cacheExpiry = time.Time{}
}

func readHostname() string {
	hostname, err := os.Hostname()
	if err != nil || strings.TrimSpace(hostname) == "" {
		slog.Warn("failed to read hostname, using fallback",
			slog.Any("error", err))
		return "unknown-host"
	}
	return strings.ToLower(strings.TrimSpace(hostname))
}

// readCPUModels returns the joined CPU model strings. Lookup is OS-specific
// and falls back to a GOOS/GOARCH tag when nothing better is available.
func readCPUModels() string {
	switch runtime.GOOS {
	case "linux":
		if models := readLinuxCPUModels(); models != "" {
			return models
		}
	case "windows":
		if procID := os.Getenv("PROCESSOR_IDENTIFIER"); procID != "" {
			return procID
		}
	}
	return fmt.Sprintf("%s-%s", runtime.GOOS, runtime.GOARCH)
}

func readLinuxCPUModels() string {
	data, err := os.ReadFile("/proc/cpuinfo")
	if err != nil {
		return ""
	}
	var models []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "model name") {
			if _, value, ok := strings.Cut(line, ":"); ok {
				models = append(models, strings.TrimSpace(value))
			}
		}
	}
	return strings.Join(models, ",")
}

// readTotalMemory returns total physical memory in kilobytes, 0 when the
// platform gives no cheap answer. A zero still hashes deterministically.
func readTotalMemory() uint64 {
	if runtime.GOOS != "linux" {
		return 0
	}
	data, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return 0
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "MemTotal:") {
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				if kb, err := strconv.ParseUint(fields[1], 10, 64); err == nil {
					return kb
				}
			}
		}
	}
	return 0
}

// readMACAddresses returns the sorted list of non-null MAC addresses plus
// the "primary" MAC: the first up, non-loopback, non-virtual interface.
// Both degrade to the no-mac placeholder.
func readMACAddresses() (all []string, primary string) {
	interfaces, err := net.Interfaces()
	if err != nil {
		slog.Warn("failed to enumerate network interfaces",
			slog.String("error", err.Error()))
		return []string{noMACPlaceholder}, noMACPlaceholder
	}

	for _, iface := range interfaces {
		mac := iface.HardwareAddr.String()
		if mac == "" || mac == "00:00:00:00:00:00" {
			continue
		}
		all = append(all, mac)

		if primary != "" {
			continue
		}
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if isVirtualInterface(iface.Name) {
			continue
		}
		primary = mac
	}

	if len(all) == 0 {
		all = []string{noMACPlaceholder}
	}
	sort.Strings(all)
	if primary == "" {
		primary = noMACPlaceholder
	}
	return all, primary
}

var virtualInterfacePrefixes = []string{
	"veth", "docker", "br-", "virbr", "vmnet", "vbox", "tun", "tap", "utun",
}

func isVirtualInterface(name string) bool {
	lower := strings.ToLower(name)
	for _, prefix := range virtualInterfacePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
