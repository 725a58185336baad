package executor

import (
	"fmt"
	"strings"
)

// Input represents a single command execution request.
type Input struct {
	Host             *Host             `json:"host,omitempty" description:"host to execute the command on"`
	Command          string            `json:"command,omitempty" description:"command to execute"`
	WorkingDirectory string            `json:"workingDirectory,omitempty" description:"directory the command starts in"`
	Env              map[string]string `json:"env,omitempty" description:"environment variables set before the command runs"`
	TimeoutMs        int               `json:"timeoutMs,omitempty" yaml:"timeoutMs,omitempty" description:"max wait time before timing the command out"`
}

// Init applies host defaults.
func (i *Input) Init(defaultHost *Host) {
	if i.Host == nil {
		if defaultHost != nil {
			i.Host = defaultHost
		} else {
			i.Host = &Host{}
		}
	}
	if i.Host.URL == "" {
		i.Host.URL = DefaultHostURL
	}
}

// Validate checks required fields.
func (i *Input) Validate() error {
	if strings.TrimSpace(i.Command) == "" {
		return fmt.Errorf("command was empty")
	}
	return nil
}

// CloneInput represents an atomic repository clone request.
type CloneInput struct {
	Host        *Host  `json:"host,omitempty" description:"host to clone the repository on"`
	URL         string `json:"url,omitempty" description:"repository URL"`
	Destination string `json:"destination,omitempty" description:"target directory, defaults to /tmp/<repo-name>"`
	TimeoutMs   int    `json:"timeoutMs,omitempty" yaml:"timeoutMs,omitempty"`
}

// Init applies host and destination defaults.
func (i *CloneInput) Init(defaultHost *Host) {
	if i.Host == nil {
		if defaultHost != nil {
			i.Host = defaultHost
		} else {
			i.Host = &Host{}
		}
	}
	if i.Host.URL == "" {
		i.Host.URL = DefaultHostURL
	}
	if i.Destination == "" {
		i.Destination = "/tmp/" + RepoName(i.URL)
	}
}

// Validate checks required fields.
func (i *CloneInput) Validate() error {
	if strings.TrimSpace(i.URL) == "" {
		return fmt.Errorf("url was empty")
	}
	return nil
}

// RepoName extracts the repository directory name from its URL, covering both
// https://host/org/repo.git and git@host:org/repo forms.
func RepoName(repoURL string) string {
	name := strings.TrimRight(strings.TrimSpace(repoURL), "/")
	name = strings.TrimSuffix(name, ".git")
	if idx := strings.LastIndexAny(name, "/:"); idx != -1 {
		name = name[idx+1:]
	}
	if name == "" {
		name = "repository"
	}
	return name
}
