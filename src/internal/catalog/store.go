package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// PortAssignment is the deterministic port plan for one service version. The
// nominal port (base + offset) is a default, not a reservation: the allocator
// still probes before use.
type PortAssignment struct {
	Service  string
	Version  string
	BasePort int
	Offset   int
	// ResolvedPort is filled in by the caller after probing.
	ResolvedPort int
}

// Nominal returns the port this version gets when nothing else occupies it.
func (p PortAssignment) Nominal() int {
	return p.BasePort + p.Offset
}

// Store owns the in-memory catalog: the built-in table overlay-merged with
// whichever remote snapshot was last applied.
type Store struct {
	mu       sync.RWMutex
	services map[string]map[string]*VersionEntry
	builtin  map[string]map[string]bool // service/version pairs from the built-in table
	applied  string                     // applied remote catalog version; "" = built-in baseline
}

// NewStore returns a store seeded from the built-in table.
func NewStore() *Store {
	s := &Store{
		services: builtinTable(),
		builtin:  make(map[string]map[string]bool),
	}
	for service, versions := range s.services {
		s.builtin[service] = make(map[string]bool, len(versions))
		for version := range versions {
			s.builtin[service][version] = true
		}
	}
	return s
}

// Applied returns the version of the last applied remote catalog, or an empty
// string when only the built-in baseline is active.
func (s *Store) Applied() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.applied
}

// Services returns the known service names, sorted.
func (s *Store) Services() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.services))
	for name := range s.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Versions returns the known versions of a service, oldest first.
func (s *Store) Versions(service string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedVersionsLocked(service)
}

func (s *Store) sortedVersionsLocked(service string) []string {
	versions := make([]string, 0, len(s.services[service]))
	for version := range s.services[service] {
		versions = append(versions, version)
	}
	sort.Slice(versions, func(i, j int) bool {
		return IsVersionNewer(versions[j], versions[i])
	})
	return versions
}

// Entry returns the raw version entry, if known.
func (s *Store) Entry(service, version string) (*VersionEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.services[service][version]
	if !ok {
		return nil, false
	}
	cp := *entry
	return &cp, true
}

// Descriptor resolves the download descriptor for a service version on the
// given platform.
func (s *Store) Descriptor(service, version, platform string) (Descriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.services[service][version]
	if !ok {
		return Descriptor{}, fmt.Errorf("unknown catalog entry %s %s", service, version)
	}
	dl, ok := entry.Downloads[platform]
	if !ok {
		return Descriptor{}, fmt.Errorf("no %s download available for %s %s", platform, service, version)
	}

	return Descriptor{
		Service:      service,
		Version:      version,
		Platform:     platform,
		URL:          dl.URL,
		FallbackURLs: append([]string(nil), dl.FallbackURLs...),
		Filename:     dl.Filename,
		Label:        entry.Label,
		DefaultPort:  entry.DefaultPort,
	}, nil
}

// PortAssignment returns the deterministic base port and version offset for a
// service version. The offset is the version's index in sorted order, so two
// versions of the same service never share a nominal port.
func (s *Store) PortAssignment(service, version string) (PortAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.services[service][version]
	if !ok {
		return PortAssignment{}, fmt.Errorf("unknown catalog entry %s %s", service, version)
	}

	offset := 0
	for i, v := range s.sortedVersionsLocked(service) {
		if v == version {
			offset = i
			break
		}
	}
	return PortAssignment{
		Service:  service,
		Version:  version,
		BasePort: entry.DefaultPort,
		Offset:   offset,
	}, nil
}

// Merge overlays a remote snapshot onto the store: new service/version
// entries are created, existing entries get their URL, filename, label and
// default port updated. Entries whose URL is the manual/embedded sentinel are
// skipped. The applied-version marker moves to the snapshot's version.
func (s *Store) Merge(snapshot *RemoteCatalog) {
	if snapshot == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for service, remote := range snapshot.Services {
		if s.services[service] == nil {
			s.services[service] = make(map[string]*VersionEntry)
		}
		for version, remoteEntry := range remote.Downloads {
			if allSentinel(remoteEntry.Downloads) {
				continue
			}

			entry, exists := s.services[service][version]
			if !exists {
				entry = &VersionEntry{Downloads: make(map[string]Download)}
				s.services[service][version] = entry
			}
			if remoteEntry.Label != "" {
				entry.Label = remoteEntry.Label
			}
			if remoteEntry.DefaultPort != 0 {
				entry.DefaultPort = remoteEntry.DefaultPort
			}
			for platform, dl := range remoteEntry.Downloads {
				if dl.URL == URLManual || dl.URL == URLEmbedded {
					continue
				}
				entry.Downloads[platform] = dl
			}
		}
	}

	if snapshot.Version != "" {
		s.applied = snapshot.Version
	}
}

func allSentinel(downloads map[string]Download) bool {
	if len(downloads) == 0 {
		return true
	}
	for _, dl := range downloads {
		if dl.URL != URLManual && dl.URL != URLEmbedded {
			return false
		}
	}
	return true
}

// IsBuiltin reports whether a service/version pair comes from the built-in
// table rather than a remote update.
func (s *Store) IsBuiltin(service, version string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.builtin[service][version]
}

// cacheEnvelope is the on-disk shape of the persisted catalog cache.
type cacheEnvelope struct {
	SavedAt time.Time      `json:"savedAt"`
	Config  *RemoteCatalog `json:"config"`
}

// SaveCache persists the last applied remote snapshot next to a timestamp.
func SaveCache(path string, snapshot *RemoteCatalog) error {
	data, err := json.MarshalIndent(cacheEnvelope{SavedAt: time.Now(), Config: snapshot}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal catalog cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write catalog cache: %w", err)
	}
	return nil
}

// LoadCache reads a previously persisted snapshot. A missing file is not an
// error; it simply means no remote update was ever applied.
func LoadCache(path string) (*RemoteCatalog, bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read catalog cache: %w", err)
	}

	var envelope cacheEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, false, fmt.Errorf("failed to parse catalog cache: %w", err)
	}
	if envelope.Config == nil {
		return nil, false, nil
	}
	return envelope.Config, true, nil
}
