package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Mode selects how procedures are dispatched.
type Mode string

const (
	// ModeStandalone runs every procedure in process.
	ModeStandalone Mode = "standalone"
	// ModeClient forwards procedures to a spacegun server.
	ModeClient Mode = "client"
	// ModeServer runs procedures in process and serves them over HTTP.
	ModeServer Mode = "server"
)

// Config is the top-level configuration structure for spacegun.
type Config struct {
	Mode          Mode          `yaml:"mode"`
	LogLevel      string        `yaml:"logLevel,omitempty"`
	Kubeconfig    string        `yaml:"kubeconfig,omitempty"`
	Clusters      []string      `yaml:"clusters,omitempty"`
	Namespaces    []string      `yaml:"namespaces,omitempty"`
	Docker        DockerConfig  `yaml:"docker"`
	Slack         SlackConfig   `yaml:"slack"`
	Server        ServerConfig  `yaml:"server"`
	CacheTTL      time.Duration `yaml:"cacheTTL"`
	ArtifactsPath string        `yaml:"artifactsPath,omitempty"`
}

// DockerConfig points at a Docker registry v2 API.
type DockerConfig struct {
	URL      string `yaml:"url,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// SlackConfig enables Slack notifications when WebhookURL is set.
type SlackConfig struct {
	WebhookURL string `yaml:"webhookURL,omitempty"`
}

// ServerConfig is where the server listens and where clients connect to.
type ServerConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`
}

// Address returns host:port.
func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// URL returns the base URL clients use.
func (s ServerConfig) URL() string {
	return fmt.Sprintf("http://%s", s.Address())
}
