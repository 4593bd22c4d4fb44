// Package catalog maintains the mapping of service → version →
// platform-specific download descriptor. The table is partly built in and
// partly updated from a remotely fetched catalog; the merged result is
// persisted so applied updates survive offline restarts.
package catalog

import (
	"encoding/json"
	"fmt"
)

// Sentinel URL values in the remote catalog meaning "no downloadable
// artifact": the binary is obtained manually or ships embedded.
const (
	URLManual   = "manual"
	URLEmbedded = "embedded"
)

// Download describes one platform-specific artifact.
type Download struct {
	URL          string   `json:"url"`
	FallbackURLs []string `json:"fallbackUrls,omitempty"`
	Filename     string   `json:"filename"`
}

// VersionEntry is one version of a service: its platform downloads plus
// presentation and port metadata.
type VersionEntry struct {
	Label       string              `json:"label,omitempty"`
	DefaultPort int                 `json:"defaultPort,omitempty"`
	Downloads   map[string]Download `json:"-"` // keyed by platform
}

// Descriptor is the fully resolved, immutable-per-session catalog entry for
// one service/version/platform combination.
type Descriptor struct {
	Service      string
	Version      string
	Platform     string
	URL          string
	FallbackURLs []string
	Filename     string
	Label        string
	DefaultPort  int
}

// TaskKey returns the composite identifier used by the download manager.
func (d Descriptor) TaskKey() string {
	return d.Service + "-" + d.Version
}

// RemoteService is the per-service block of a remote catalog document.
type RemoteService struct {
	Downloads map[string]VersionEntry `json:"downloads"`
}

// RemoteCatalog is the JSON document fetched from the release endpoint:
//
//	{version, lastUpdated, <service>: {downloads: {<version>: {...}}}}
type RemoteCatalog struct {
	Version     string
	LastUpdated string
	Services    map[string]RemoteService
}

// UnmarshalJSON splits the fixed fields from the dynamic per-service keys.
func (c *RemoteCatalog) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.Services = make(map[string]RemoteService)
	for key, value := range raw {
		switch key {
		case "version":
			if err := json.Unmarshal(value, &c.Version); err != nil {
				return fmt.Errorf("invalid catalog version field: %w", err)
			}
		case "lastUpdated":
			if err := json.Unmarshal(value, &c.LastUpdated); err != nil {
				return fmt.Errorf("invalid catalog lastUpdated field: %w", err)
			}
		default:
			var svc RemoteService
			if err := json.Unmarshal(value, &svc); err != nil {
				return fmt.Errorf("invalid catalog entry for service %q: %w", key, err)
			}
			c.Services[key] = svc
		}
	}
	return nil
}

// MarshalJSON re-flattens the service map next to the fixed fields so the
// persisted cache matches the wire format byte for byte.
func (c RemoteCatalog) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(c.Services)+2)
	flat["version"] = c.Version
	flat["lastUpdated"] = c.LastUpdated
	for name, svc := range c.Services {
		flat[name] = svc
	}
	return json.Marshal(flat)
}

// UnmarshalJSON separates label/defaultPort from the platform download keys,
// which live beside them in the same object.
func (v *VersionEntry) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	v.Downloads = make(map[string]Download)
	for key, value := range raw {
		switch key {
		case "label":
			if err := json.Unmarshal(value, &v.Label); err != nil {
				return err
			}
		case "defaultPort":
			if err := json.Unmarshal(value, &v.DefaultPort); err != nil {
				return err
			}
		default:
			var dl Download
			if err := json.Unmarshal(value, &dl); err != nil {
				return fmt.Errorf("invalid download entry for platform %q: %w", key, err)
			}
			v.Downloads[key] = dl
		}
	}
	return nil
}

// MarshalJSON is the inverse of UnmarshalJSON.
func (v VersionEntry) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(v.Downloads)+2)
	if v.Label != "" {
		flat["label"] = v.Label
	}
	if v.DefaultPort != 0 {
		flat["defaultPort"] = v.DefaultPort
	}
	for platform, dl := range v.Downloads {
		flat[platform] = dl
	}
	return json.Marshal(flat)
}
