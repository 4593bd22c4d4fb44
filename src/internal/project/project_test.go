package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRegistry = `projects:
  - id: blog
    name: Blog
    domain: blog.test
    root: /srv/blog
    serverType: nginx
    serverVersion: 1.26.1
    phpVersion: 8.3.8
  - id: shop
    name: Shop
    root: /srv/shop
    serverType: apache
    serverVersion: 2.4.59
    phpVersion: 8.2.20
`

func writeRegistry(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "projects.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	projects, err := Load(writeRegistry(t, sampleRegistry))
	require.NoError(t, err)
	require.Len(t, projects, 2)

	assert.Equal(t, "blog", projects[0].ID)
	assert.Equal(t, "blog.test", projects[0].Domain)
	assert.Equal(t, "nginx", projects[0].ServerType)
	assert.Equal(t, "8.2.20", projects[1].PHPVersion)
}

func TestLoadMissingFileYieldsEmptySet(t *testing.T) {
	projects, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	_, err := Load(writeRegistry(t, "projects: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestValidate(t *testing.T) {
	valid := Project{
		ID: "blog", Root: "/srv/blog",
		ServerType: "nginx", ServerVersion: "1.26.1", PHPVersion: "8.3.8",
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Project)
		want   string
	}{
		{"missing id", func(p *Project) { p.ID = "" }, "project id"},
		{"missing root", func(p *Project) { p.Root = "" }, "document root"},
		{"missing server type", func(p *Project) { p.ServerType = "" }, "server type"},
		{"missing server version", func(p *Project) { p.ServerVersion = "" }, "server version"},
		{"missing php version", func(p *Project) { p.PHPVersion = "" }, "php version"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFindAndKnownIDs(t *testing.T) {
	projects, err := Load(writeRegistry(t, sampleRegistry))
	require.NoError(t, err)

	found, ok := Find(projects, "shop")
	require.True(t, ok)
	assert.Equal(t, "apache", found.ServerType)

	_, ok = Find(projects, "ghost")
	assert.False(t, ok)

	assert.Equal(t, map[string]bool{"blog": true, "shop": true}, KnownIDs(projects))
}
