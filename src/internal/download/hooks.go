package download

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/devstack-cli/devstack/src/internal/catalog"
)

// phpIniTemplate is the development php.ini written after a PHP install:
// errors visible, generous limits, mail handed to the managed Mailpit.
const phpIniTemplate = `; Generated development configuration.
display_errors = On
display_startup_errors = On
error_reporting = E_ALL
memory_limit = 512M
max_execution_time = 120
post_max_size = 128M
upload_max_filesize = 128M
session.save_path = "%s"
sendmail_path = "%s sendmail --smtp-addr 127.0.0.1:1025"
cgi.fix_pathinfo = 1
extension_dir = "ext"
`

// runPostInstallHooks performs service-specific one-time setup after
// extraction, before the task reaches completed. Hooks are idempotent; a
// failed non-critical step is logged and does not fail the install.
func runPostInstallHooks(desc catalog.Descriptor, installDir string, log zerolog.Logger) {
	switch desc.Service {
	case catalog.ServicePHP:
		if err := writeDefaultPHPIni(installDir); err != nil {
			log.Warn().Err(err).Str("service", desc.Service).Str("version", desc.Version).
				Msg("post-install hook failed, continuing")
		}
	case catalog.ServiceMySQL:
		if err := writeRootCredential(installDir); err != nil {
			log.Warn().Err(err).Str("service", desc.Service).Str("version", desc.Version).
				Msg("post-install hook failed, continuing")
		}
	}
}

// writeDefaultPHPIni generates php.ini with development defaults. An existing
// php.ini is left alone so a reinstall never clobbers user edits.
func writeDefaultPHPIni(installDir string) error {
	iniPath := filepath.Join(installDir, "php.ini")
	if _, err := os.Stat(iniPath); err == nil {
		return nil
	}

	sessions := filepath.Join(installDir, "tmp", "sessions")
	if err := os.MkdirAll(sessions, 0750); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	mailpit := filepath.Join(filepath.Dir(filepath.Dir(filepath.Dir(installDir))), "mailpit")
	content := fmt.Sprintf(phpIniTemplate, sessions, filepath.Join(mailpit, "mailpit"))
	if err := os.WriteFile(iniPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write php.ini: %w", err)
	}
	return nil
}

// writeRootCredential generates the management credential secret used when
// initializing the database. Idempotent: an existing secret is preserved.
func writeRootCredential(installDir string) error {
	credPath := filepath.Join(installDir, ".root-credential")
	if _, err := os.Stat(credPath); err == nil {
		return nil
	}
	if err := os.WriteFile(credPath, []byte(uuid.NewString()), 0600); err != nil {
		return fmt.Errorf("failed to write credential secret: %w", err)
	}
	return nil
}
