package supervisor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/devstack-cli/devstack/src/internal/catalog"
	"github.com/devstack-cli/devstack/src/internal/paths"
	"github.com/devstack-cli/devstack/src/internal/project"
)

// The default-deny TLS catch-all matters: without it an HTTPS request for an
// unknown hostname silently falls back to whichever project's certificate
// sorts first, serving one project's content under another's name.
const nginxMainTemplate = `worker_processes auto;

error_log "{{.LogsDir}}/error.log" warn;

events {
    worker_connections 1024;
}

http {
    access_log "{{.LogsDir}}/access.log";
    sendfile on;
    keepalive_timeout 65;

    server {
        listen 443 ssl default_server;
        server_name _;
        ssl_reject_handshake on;
    }

    include "{{.SitesDir}}/*.conf";
}
`

const nginxVhostTemplate = `server {
    listen 80;
    server_name {{.Domain}};
    root "{{.Root}}";
    index index.php index.html;

    access_log "{{.LogsDir}}/{{.ProjectID}}.access.log";

    location / {
        try_files $uri $uri/ /index.php?$query_string;
    }

    location ~ \.php$ {
        fastcgi_pass 127.0.0.1:{{.GatewayPort}};
        fastcgi_index index.php;
        fastcgi_param SCRIPT_FILENAME $document_root$fastcgi_script_name;
        include fastcgi_params;
    }
}
`

const apacheMainTemplate = `ServerRoot "{{.InstallDir}}"
Listen 80

LoadModule dir_module modules/mod_dir.so
LoadModule mime_module modules/mod_mime.so
LoadModule proxy_module modules/mod_proxy.so
LoadModule proxy_fcgi_module modules/mod_proxy_fcgi.so

ErrorLog "{{.LogsDir}}/error.log"
CustomLog "{{.LogsDir}}/access.log" common
LogFormat "%h %l %u %t \"%r\" %>s %b" common

IncludeOptional "{{.SitesDir}}/*.conf"
`

const apacheVhostTemplate = `<VirtualHost *:80>
    ServerName {{.Domain}}
    DocumentRoot "{{.Root}}"

    ErrorLog "{{.LogsDir}}/{{.ProjectID}}.error.log"

    <FilesMatch \.php$>
        SetHandler "proxy:fcgi://127.0.0.1:{{.GatewayPort}}"
    </FilesMatch>

    <Directory "{{.Root}}">
        DirectoryIndex index.php index.html
        AllowOverride All
        Require all granted
    </Directory>
</VirtualHost>
`

var (
	nginxMain   = template.Must(template.New("nginx-main").Parse(nginxMainTemplate))
	nginxVhost  = template.Must(template.New("nginx-vhost").Parse(nginxVhostTemplate))
	apacheMain  = template.Must(template.New("apache-main").Parse(apacheMainTemplate))
	apacheVhost = template.Must(template.New("apache-vhost").Parse(apacheVhostTemplate))
)

type mainConfigData struct {
	LogsDir    string
	SitesDir   string
	InstallDir string
}

type vhostData struct {
	ProjectID   string
	Domain      string
	Root        string
	LogsDir     string
	GatewayPort int
}

// mainConfigPath returns where the generated main configuration for one
// server type/version lives.
func mainConfigPath(dataRoot, serverType, version string) string {
	return filepath.Join(dataRoot, serverType, fmt.Sprintf("%s-%s.conf", serverType, version))
}

// writeMainConfig generates the main server configuration for a server
// type/version unless it already exists. Log paths live under the managed
// data directory so they survive binary reinstalls.
func writeMainConfig(dataRoot, serverType, version, installDir string) (string, error) {
	confPath := mainConfigPath(dataRoot, serverType, version)
	if _, err := os.Stat(confPath); err == nil {
		return confPath, nil
	}

	logsDir := paths.LogsDir(dataRoot, serverType)
	sitesDir := paths.SitesDir(dataRoot, serverType)
	for _, dir := range []string{logsDir, sitesDir} {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return "", fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	tmpl := nginxMain
	if serverType == catalog.ServiceApache {
		tmpl = apacheMain
	}

	var sb strings.Builder
	data := mainConfigData{
		LogsDir:    filepath.ToSlash(logsDir),
		SitesDir:   filepath.ToSlash(sitesDir),
		InstallDir: filepath.ToSlash(installDir),
	}
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render main config: %w", err)
	}
	if err := os.WriteFile(confPath, []byte(sb.String()), 0644); err != nil {
		return "", fmt.Errorf("failed to write main config: %w", err)
	}
	return confPath, nil
}

// writeVhost generates the per-project virtual-host file, keyed by project
// id so orphan cleanup can recover the id from the filename.
func writeVhost(dataRoot string, p project.Project, gatewayPort int) (string, error) {
	sitesDir := paths.SitesDir(dataRoot, p.ServerType)
	if err := os.MkdirAll(sitesDir, 0750); err != nil {
		return "", fmt.Errorf("failed to create sites directory: %w", err)
	}

	tmpl := nginxVhost
	if p.ServerType == catalog.ServiceApache {
		tmpl = apacheVhost
	}

	domain := p.Domain
	if domain == "" {
		domain = p.ID + ".test"
	}

	var sb strings.Builder
	data := vhostData{
		ProjectID:   p.ID,
		Domain:      domain,
		Root:        filepath.ToSlash(p.Root),
		LogsDir:     filepath.ToSlash(paths.LogsDir(dataRoot, p.ServerType)),
		GatewayPort: gatewayPort,
	}
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render vhost for %s: %w", p.ID, err)
	}

	confPath := paths.SiteConfig(dataRoot, p.ServerType, p.ID)
	if err := os.WriteFile(confPath, []byte(sb.String()), 0644); err != nil {
		return "", fmt.Errorf("failed to write vhost for %s: %w", p.ID, err)
	}
	return confPath, nil
}

const fpmPoolTemplate = `[global]
error_log = {{.LogsDir}}/fpm-{{.ProjectID}}.log

[www]
listen = {{.Addr}}
pm = static
pm.max_children = 4
`

var fpmPool = template.Must(template.New("fpm-pool").Parse(fpmPoolTemplate))

// writeGatewayConfig renders the php-fpm pool file for one project. php-fpm
// only takes its listen address from configuration, never from flags.
func writeGatewayConfig(dataRoot, projectID, addr string) (string, error) {
	fpmDir := filepath.Join(dataRoot, catalog.ServicePHP, "fpm")
	if err := os.MkdirAll(fpmDir, 0750); err != nil {
		return "", fmt.Errorf("failed to create fpm config directory: %w", err)
	}
	logsDir := paths.LogsDir(dataRoot, catalog.ServicePHP)
	if err := os.MkdirAll(logsDir, 0750); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", logsDir, err)
	}

	var sb strings.Builder
	data := struct {
		ProjectID string
		Addr      string
		LogsDir   string
	}{ProjectID: projectID, Addr: addr, LogsDir: filepath.ToSlash(logsDir)}
	if err := fpmPool.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render fpm pool for %s: %w", projectID, err)
	}

	confPath := filepath.Join(fpmDir, projectID+".conf")
	if err := os.WriteFile(confPath, []byte(sb.String()), 0644); err != nil {
		return "", fmt.Errorf("failed to write fpm pool for %s: %w", projectID, err)
	}
	return confPath, nil
}

func removeVhost(dataRoot, serverType, projectID string) {
	_ = os.Remove(paths.SiteConfig(dataRoot, serverType, projectID))
}

// cleanupOrphanedVhosts deletes site files whose filename-derived project id
// is not in the known set. Runs at supervisor startup so interrupted
// shutdowns and app upgrades cannot accumulate stale configuration.
func cleanupOrphanedVhosts(dataRoot, serverType string, known map[string]bool) []string {
	sitesDir := paths.SitesDir(dataRoot, serverType)
	entries, err := os.ReadDir(sitesDir)
	if err != nil {
		return nil
	}

	var removed []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".conf") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".conf")
		if known[id] {
			continue
		}
		if err := os.Remove(filepath.Join(sitesDir, entry.Name())); err == nil {
			removed = append(removed, id)
		}
	}
	return removed
}
