// Package project loads the project registry consumed by the supervisor.
// Project CRUD lives outside this tool; here projects are read-only records.
package project

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Project is one managed site.
type Project struct {
	ID            string `yaml:"id" json:"id"`
	Name          string `yaml:"name" json:"name"`
	Domain        string `yaml:"domain" json:"domain"`
	Root          string `yaml:"root" json:"root"`
	ServerType    string `yaml:"serverType" json:"serverType"`
	ServerVersion string `yaml:"serverVersion" json:"serverVersion"`
	PHPVersion    string `yaml:"phpVersion" json:"phpVersion"`
}

// Validate checks that a record carries everything the supervisor needs.
func (p Project) Validate() error {
	switch {
	case p.ID == "":
		return fmt.Errorf("project id is required")
	case p.Root == "":
		return fmt.Errorf("document root is required for project %s", p.ID)
	case p.ServerType == "":
		return fmt.Errorf("server type is required for project %s", p.ID)
	case p.ServerVersion == "":
		return fmt.Errorf("server version is required for project %s", p.ID)
	case p.PHPVersion == "":
		return fmt.Errorf("php version is required for project %s", p.ID)
	default:
		return nil
	}
}

type registryFile struct {
	Projects []Project `yaml:"projects"`
}

// Load reads the project registry file. A missing file yields an empty set.
func Load(path string) ([]Project, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read project registry: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse project registry: %w", err)
	}
	return file.Projects, nil
}

// Find returns the project with the given id.
func Find(projects []Project, id string) (Project, bool) {
	for _, p := range projects {
		if p.ID == id {
			return p, true
		}
	}
	return Project{}, false
}

// KnownIDs returns the set of project ids, used for orphan cleanup.
func KnownIDs(projects []Project) map[string]bool {
	ids := make(map[string]bool, len(projects))
	for _, p := range projects {
		ids[p.ID] = true
	}
	return ids
}
