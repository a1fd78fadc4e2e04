// Package registry implements the durable device registry (C2): an
// in-memory map of UIN to device, persisted one JSON file per device, with
// per-direction keys derived against the local server identity on load.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/dcnnt/dcnntd/internal/device"
	"github.com/dcnnt/dcnntd/internal/logger"
)

// Registry is the durable store of known peer devices. All exported methods
// are safe for concurrent use; mutations persist the affected file while
// holding the write lock, per spec §5.
type Registry struct {
	mu      sync.RWMutex
	dir     string
	server  *device.Device
	devices map[uint32]*device.Device
}

// New creates an empty registry rooted at dir with the given server
// identity. Call Load to populate it from disk.
func New(dir string, server *device.Device) *Registry {
	return &Registry{
		dir:     dir,
		server:  server,
		devices: make(map[uint32]*device.Device),
	}
}

// deviceFileName returns the canonical on-disk name for a device's uin.
func deviceFileName(uin uint32) string {
	return fmt.Sprintf("%d.device.json", uin)
}

// Load scans dir for files matching *.device.json, validates and inserts
// each by uin, and derives per-direction keys against the server identity.
// Unparseable files are logged and skipped, never fatal.
func (r *Registry) Load(ctx context.Context) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("registry: create directory: %w", err)
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("registry: read directory: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".device.json") {
			continue
		}

		path := filepath.Join(r.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			logger.WarnCtx(ctx, "registry: failed to read device file", "path", path, logger.Err(err))
			continue
		}

		var d device.Device
		if err := json.Unmarshal(data, &d); err != nil {
			logger.WarnCtx(ctx, "registry: failed to parse device file", "path", path, logger.Err(err))
			continue
		}

		if d.UIN == 0 {
			logger.WarnCtx(ctx, "registry: device file missing uin", "path", path)
			continue
		}

		d.DeriveKeys(r.server)
		r.devices[d.UIN] = &d
	}

	return nil
}

// saveLocked writes d's JSON representation atomically. Caller must hold
// r.mu for writing.
func (r *Registry) saveLocked(d *device.Device) error {
	path := filepath.Join(r.dir, deviceFileName(d.UIN))

	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("registry: marshal device %d: %w", d.UIN, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("registry: write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("registry: rename temp file: %w", err)
	}
	return nil
}

// Save atomically persists d, overwriting any existing file for its uin.
func (r *Registry) Save(d *device.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveLocked(d)
}

// Update upserts a device's ip/name/role, per spec §4.2: when uin is
// unknown, create iff both name and role are supplied; never overwrite an
// existing name/role/password from discovery.
func (r *Registry) Update(ctx context.Context, uin uint32, ip string, name, role string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, known := r.devices[uin]
	if !known {
		if name == "" || role == "" || !device.ValidRole(role) {
			logger.WarnCtx(ctx, "registry: dropping update for unknown device missing name/role",
				logger.UIN(uin))
			return
		}
		d = &device.Device{UIN: uin, Name: name, Role: device.Role(role)}
		r.devices[uin] = d
	}

	d.IP = ip
	d.DeriveKeys(r.server)

	if err := r.saveLocked(d); err != nil {
		logger.ErrorCtx(ctx, "registry: failed to persist device", logger.UIN(uin), logger.Err(err))
	}
}

// UpdatePassword sets a device's password, re-derives its keys, and
// persists it. Returns false if the device is unknown.
func (r *Registry) UpdatePassword(ctx context.Context, uin uint32, password string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[uin]
	if !ok {
		return false
	}

	d.Password = password
	d.DeriveKeys(r.server)

	if err := r.saveLocked(d); err != nil {
		logger.ErrorCtx(ctx, "registry: failed to persist device password", logger.UIN(uin), logger.Err(err))
	}
	return true
}

// Lookup returns a copy of the device record for uin, if known.
func (r *Registry) Lookup(uin uint32) (device.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[uin]
	if !ok {
		return device.Device{}, false
	}
	return *d, true
}

// IP returns the last known address for uin, if any.
func (r *Registry) IP(uin uint32) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[uin]
	if !ok || d.IP == "" {
		return "", false
	}
	return d.IP, true
}

// List returns copies of all known devices, sorted by uin. This is not
// exposed over the network, and no CLI mode calls it; the registry tests
// use it (see DESIGN.md — a supplemental enumeration, not a spec.md
// Non-goal violation).
func (r *Registry) List() []device.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]device.Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UIN < out[j].UIN })
	return out
}

// ParseUINFromFileName extracts the uin prefix of a *.device.json file name,
// used by tooling that enumerates the registry directory directly.
func ParseUINFromFileName(name string) (uint32, error) {
	base := strings.TrimSuffix(name, ".device.json")
	v, err := strconv.ParseUint(base, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("registry: invalid device file name %q: %w", name, err)
	}
	return uint32(v), nil
}
