package commands

import (
	"github.com/spf13/cobra"

	"github.com/devstack-cli/devstack/src/internal/output"
	"github.com/devstack-cli/devstack/src/internal/registry"
)

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	var installedOnly bool

	cmd := &cobra.Command{
		Use:   "list [service]",
		Short: "List catalog services and installed versions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext()
			if err != nil {
				return err
			}

			services := app.store.Services()
			if len(args) == 1 {
				services = []string{args[0]}
			}

			var listings []ServiceListing
			for _, service := range services {
				listing := buildListing(app, service, installedOnly)
				if installedOnly && len(listing.Versions) == 0 {
					continue
				}
				listings = append(listings, listing)
			}

			return output.Print(listings, func() {
				renderListings(listings)
			})
		},
	}

	cmd.Flags().BoolVar(&installedOnly, "installed", false, "Show only installed versions")
	return cmd
}

func buildListing(app *appContext, service string, installedOnly bool) ServiceListing {
	installed := make(map[string]registry.InstalledVersion)
	for _, iv := range app.registry.InstalledVersions(service) {
		installed[iv.Version] = iv
	}

	listing := ServiceListing{Service: service}
	for _, version := range app.store.Versions(service) {
		iv, ok := installed[version]
		if installedOnly && !ok {
			continue
		}
		row := VersionListing{Version: version, Installed: ok, Path: iv.Path}
		if entry, ok := app.store.Entry(service, version); ok {
			row.Label = entry.Label
		}
		listing.Versions = append(listing.Versions, row)
		delete(installed, version)
	}

	// Whatever remains was imported by hand and is unknown to the catalog.
	for _, iv := range installed {
		listing.Versions = append(listing.Versions, VersionListing{
			Version:   iv.Version,
			Installed: true,
			Custom:    true,
			Path:      iv.Path,
		})
	}
	return listing
}

func renderListings(listings []ServiceListing) {
	for _, listing := range listings {
		output.Section("📦", listing.Service)
		if len(listing.Versions) == 0 {
			output.Item("%s", output.Muted("no versions"))
			continue
		}
		for _, v := range listing.Versions {
			label := v.Version
			if v.Label != "" && v.Label != v.Version {
				label += " (" + v.Label + ")"
			}
			switch {
			case v.Custom:
				output.ItemSuccess("%s %s", label, output.Muted("custom import"))
			case v.Installed:
				output.ItemSuccess("%s", label)
			default:
				output.Item("%s", label)
			}
		}
	}
}
