package catalog

// Built-in download table. Remote catalog updates overlay this at runtime;
// the table itself is the baseline that exists without any network access.
//
// Every version of a port-bearing service shares the family default port
// here; the store derives a per-version offset from the sorted version list
// so concurrent versions of one service never collide by default.

const (
	ServicePHP      = "php"
	ServiceMySQL    = "mysql"
	ServiceRedis    = "redis"
	ServiceMailpit  = "mailpit"
	ServiceNginx    = "nginx"
	ServiceApache   = "apache"
	ServiceComposer = "composer"
)

const (
	platWindows = "windows"
	platLinux   = "linux"
	platDarwin  = "darwin"
)

func builtinTable() map[string]map[string]*VersionEntry {
	return map[string]map[string]*VersionEntry{
		ServicePHP: {
			"8.1.29": {
				Label:       "PHP 8.1",
				DefaultPort: 9000,
				Downloads: map[string]Download{
					platWindows: {
						URL:      "https://windows.php.net/downloads/releases/php-8.1.29-nts-Win32-vs16-x64.zip",
						Filename: "php-8.1.29-nts-Win32-vs16-x64.zip",
					},
				},
			},
			"8.2.20": {
				Label:       "PHP 8.2",
				DefaultPort: 9000,
				Downloads: map[string]Download{
					platWindows: {
						URL:      "https://windows.php.net/downloads/releases/php-8.2.20-nts-Win32-vs16-x64.zip",
						Filename: "php-8.2.20-nts-Win32-vs16-x64.zip",
					},
				},
			},
			"8.3.8": {
				Label:       "PHP 8.3",
				DefaultPort: 9000,
				Downloads: map[string]Download{
					platWindows: {
						URL:      "https://windows.php.net/downloads/releases/php-8.3.8-nts-Win32-vs16-x64.zip",
						Filename: "php-8.3.8-nts-Win32-vs16-x64.zip",
					},
				},
			},
		},
		ServiceMySQL: {
			"5.7.44": {
				Label:       "MySQL 5.7",
				DefaultPort: 3306,
				Downloads: map[string]Download{
					platWindows: {
						URL:      "https://cdn.mysql.com/archives/mysql-5.7/mysql-5.7.44-winx64.zip",
						Filename: "mysql-5.7.44-winx64.zip",
					},
					platLinux: {
						URL:      "https://cdn.mysql.com/archives/mysql-5.7/mysql-5.7.44-linux-glibc2.12-x86_64.tar.gz",
						Filename: "mysql-5.7.44-linux-glibc2.12-x86_64.tar.gz",
					},
				},
			},
			"8.0.37": {
				Label:       "MySQL 8.0",
				DefaultPort: 3306,
				Downloads: map[string]Download{
					platWindows: {
						URL:      "https://cdn.mysql.com/Downloads/MySQL-8.0/mysql-8.0.37-winx64.zip",
						Filename: "mysql-8.0.37-winx64.zip",
					},
					platLinux: {
						URL:      "https://cdn.mysql.com/Downloads/MySQL-8.0/mysql-8.0.37-linux-glibc2.28-x86_64.tar.gz",
						Filename: "mysql-8.0.37-linux-glibc2.28-x86_64.tar.gz",
					},
				},
			},
		},
		ServiceRedis: {
			"5.0.14.1": {
				Label:       "Redis 5 (Windows port)",
				DefaultPort: 6379,
				Downloads: map[string]Download{
					platWindows: {
						URL:      "https://github.com/tporadowski/redis/releases/download/v5.0.14.1/Redis-x64-5.0.14.1.zip",
						Filename: "Redis-x64-5.0.14.1.zip",
					},
				},
			},
			"7.2.5": {
				Label:       "Redis 7.2",
				DefaultPort: 6379,
				Downloads: map[string]Download{
					platLinux: {
						URL:      "https://download.redis.io/releases/redis-7.2.5.tar.gz",
						Filename: "redis-7.2.5.tar.gz",
					},
				},
			},
		},
		ServiceMailpit: {
			"1.18.0": {
				Label:       "Mailpit",
				DefaultPort: 8025,
				Downloads: map[string]Download{
					platWindows: {
						URL:      "https://github.com/axllent/mailpit/releases/download/v1.18.0/mailpit-windows-amd64.zip",
						Filename: "mailpit-windows-amd64.zip",
					},
					platLinux: {
						URL:      "https://github.com/axllent/mailpit/releases/download/v1.18.0/mailpit-linux-amd64.tar.gz",
						Filename: "mailpit-linux-amd64.tar.gz",
					},
					platDarwin: {
						URL:      "https://github.com/axllent/mailpit/releases/download/v1.18.0/mailpit-darwin-arm64.tar.gz",
						Filename: "mailpit-darwin-arm64.tar.gz",
					},
				},
			},
		},
		ServiceNginx: {
			"1.24.0": {
				Label:       "nginx 1.24",
				DefaultPort: 80,
				Downloads: map[string]Download{
					platWindows: {
						URL:      "https://nginx.org/download/nginx-1.24.0.zip",
						Filename: "nginx-1.24.0.zip",
					},
					platLinux: {
						URL:      "https://nginx.org/download/nginx-1.24.0.tar.gz",
						Filename: "nginx-1.24.0.tar.gz",
					},
				},
			},
			"1.26.1": {
				Label:       "nginx 1.26",
				DefaultPort: 80,
				Downloads: map[string]Download{
					platWindows: {
						URL:      "https://nginx.org/download/nginx-1.26.1.zip",
						Filename: "nginx-1.26.1.zip",
					},
					platLinux: {
						URL:      "https://nginx.org/download/nginx-1.26.1.tar.gz",
						Filename: "nginx-1.26.1.tar.gz",
					},
				},
			},
		},
		ServiceApache: {
			// Apache mirrors intermittently reject automated clients, hence
			// the fallback chain.
			"2.4.59": {
				Label:       "Apache 2.4",
				DefaultPort: 80,
				Downloads: map[string]Download{
					platWindows: {
						URL: "https://www.apachelounge.com/download/VS17/binaries/httpd-2.4.59-240404-win64-VS17.zip",
						FallbackURLs: []string{
							"https://archive.apache.org/dist/httpd/binaries/win32/httpd-2.4.59-win64-VS17.zip",
						},
						Filename: "httpd-2.4.59-win64-VS17.zip",
					},
					platLinux: {
						URL: "https://dlcdn.apache.org/httpd/httpd-2.4.59.tar.gz",
						FallbackURLs: []string{
							"https://archive.apache.org/dist/httpd/httpd-2.4.59.tar.gz",
						},
						Filename: "httpd-2.4.59.tar.gz",
					},
				},
			},
		},
		ServiceComposer: {
			"2.7.7": {
				Label: "Composer",
				Downloads: map[string]Download{
					platWindows: {
						URL:      "https://getcomposer.org/download/2.7.7/composer.phar",
						Filename: "composer.phar",
					},
					platLinux: {
						URL:      "https://getcomposer.org/download/2.7.7/composer.phar",
						Filename: "composer.phar",
					},
					platDarwin: {
						URL:      "https://getcomposer.org/download/2.7.7/composer.phar",
						Filename: "composer.phar",
					},
				},
			},
		},
	}
}

// executableCandidates maps each service to the relative paths probed when
// deciding whether a version directory holds a working install.
var executableCandidates = map[string][]string{
	ServicePHP:      {"php.exe", "php", "bin/php"},
	ServiceMySQL:    {"bin/mysqld.exe", "bin/mysqld"},
	ServiceRedis:    {"redis-server.exe", "redis-server", "src/redis-server"},
	ServiceMailpit:  {"mailpit.exe", "mailpit"},
	ServiceNginx:    {"nginx.exe", "nginx", "sbin/nginx"},
	ServiceApache:   {"bin/httpd.exe", "bin/httpd"},
	ServiceComposer: {"composer.phar"},
}

// ExecutableCandidates returns the relative executable paths probed for a
// service, in priority order.
func ExecutableCandidates(service string) []string {
	return executableCandidates[service]
}

// GatewayExecutableCandidates returns the FastCGI gateway binary probed
// inside a PHP install.
func GatewayExecutableCandidates() []string {
	return []string{"php-cgi.exe", "sbin/php-fpm", "php-fpm"}
}
