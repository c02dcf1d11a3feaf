// Package config loads the pipeline configuration: one YAML file plus
// environment overrides for secrets and endpoints.
package config

import (
	"fmt"
	"net"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration. Each process validates only the
// sections it uses.
type Config struct {
	Temporal     Temporal     `yaml:"temporal"`
	Neo4j        Neo4j        `yaml:"neo4j"`
	Redis        Redis        `yaml:"redis"`
	ISIM         ISIM         `yaml:"isim"`
	NmapBasic    NmapBasic    `yaml:"nmap_basic"`
	NmapTopology NmapTopology `yaml:"nmap_topology"`
	EASM         EASM         `yaml:"easm_scanner"`
	SLP          SLP          `yaml:"slp_enrichment"`
	CVE          CVE          `yaml:"cve_connector"`
}

// Temporal is the workflow service connection and the task queue layout.
type Temporal struct {
	URL          string `yaml:"url"`
	Namespace    string `yaml:"namespace"`
	EASMQueue    string `yaml:"easm_task_queue"`
	NmapQueue    string `yaml:"nmap_task_queue"`
	CVEQueue     string `yaml:"cve_connector_task_queue"`
	SLPQueue     string `yaml:"slp_enrichment_task_queue"`
	CSAQueue     string `yaml:"csa_task_queue"`
	DialAttempts int    `yaml:"dial_attempts"`
}

// Neo4j is the graph store connection.
type Neo4j struct {
	Bolt     string `yaml:"bolt"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// Redis is the blob hand-off store connection.
type Redis struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Addr returns host:port.
func (r *Redis) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// ISIM is the inventory API base URL.
type ISIM struct {
	URL string `yaml:"url"`
}

// NmapBasic configures the host discovery scan.
type NmapBasic struct {
	Targets     []string `yaml:"targets"`
	Arguments   []string `yaml:"arguments"`
	OrgUnitName string   `yaml:"org_unit_name"`
	Tags        []string `yaml:"tag"`
}

// NmapTopology configures the traceroute topology scan.
type NmapTopology struct {
	Targets   []string `yaml:"targets"`
	Arguments []string `yaml:"arguments"`
}

// EASM configures external attack surface enumeration.
type EASM struct {
	Domains      []string `yaml:"domains"`
	Mode         string   `yaml:"mode"`
	HTTPXPath    string   `yaml:"httpx_path"`
	Threads      int      `yaml:"threads"`
	WordlistPath string   `yaml:"wordlist_path"`
}

// SLP configures the Silent Push enrichment.
type SLP struct {
	APIKey string `yaml:"x_api_key"`
}

// CVE configures the NVD connector.
type CVE struct {
	NVDAPIKey string `yaml:"nvd_api_key"`
}

// Load reads the file at path and applies environment overrides.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("config: %q: %w", path, err)
	}
	c.defaults()
	c.env()
	return &c, nil
}

func (c *Config) defaults() {
	if c.Temporal.Namespace == "" {
		c.Temporal.Namespace = "default"
	}
	if c.Temporal.CVEQueue == "" {
		c.Temporal.CVEQueue = "cve-update-task-queue"
	}
	if c.Temporal.CSAQueue == "" {
		c.Temporal.CSAQueue = "csa"
	}
	if c.Temporal.DialAttempts == 0 {
		c.Temporal.DialAttempts = 20
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.NmapBasic.OrgUnitName == "" {
		c.NmapBasic.OrgUnitName = "Internal IT"
	}
	if c.EASM.Mode == "" {
		c.EASM.Mode = "fast"
	}
	if c.EASM.Threads == 0 {
		c.EASM.Threads = 100
	}
	if c.EASM.HTTPXPath == "" {
		c.EASM.HTTPXPath = "httpx"
	}
}

func (c *Config) env() {
	if v, ok := os.LookupEnv("NEO4J_PASSWORD"); ok {
		c.Neo4j.Password = v
	}
	if v, ok := os.LookupEnv("NEO4J_BOLT"); ok {
		c.Neo4j.Bolt = v
	}
	if v, ok := os.LookupEnv("NEO4J_USER"); ok {
		c.Neo4j.User = v
	}
	host, okHost := os.LookupEnv("TEMPORAL_HOST")
	port, okPort := os.LookupEnv("TEMPORAL_PORT")
	if okHost && okPort {
		c.Temporal.URL = net.JoinHostPort(host, port)
	}
	if v, ok := os.LookupEnv("NVD_KEY"); ok {
		c.CVE.NVDAPIKey = v
	}
	if v, ok := os.LookupEnv("SLP_API_KEY"); ok {
		c.SLP.APIKey = v
	}
}

// ValidateNeo4j checks the graph store section.
func (c *Config) ValidateNeo4j() error {
	switch {
	case c.Neo4j.Bolt == "":
		return fmt.Errorf("config: neo4j.bolt is required")
	case c.Neo4j.User == "":
		return fmt.Errorf("config: neo4j.user is required")
	case c.Neo4j.Password == "":
		return fmt.Errorf("config: neo4j.password is required")
	}
	return nil
}

// ValidateTemporal checks the workflow service section.
func (c *Config) ValidateTemporal() error {
	if c.Temporal.URL == "" {
		return fmt.Errorf("config: temporal.url is required")
	}
	return nil
}

// ValidateEASM checks the enumeration section. Complete mode needs a
// bruteforce wordlist on disk.
func (c *Config) ValidateEASM() error {
	switch c.EASM.Mode {
	case "fast":
	case "complete":
		if c.EASM.WordlistPath == "" {
			return fmt.Errorf("config: easm_scanner.wordlist_path is required in complete mode")
		}
		if _, err := os.Stat(c.EASM.WordlistPath); err != nil {
			return fmt.Errorf("config: easm_scanner.wordlist_path: %w", err)
		}
	default:
		return fmt.Errorf("config: easm_scanner.mode must be %q or %q, got %q", "fast", "complete", c.EASM.Mode)
	}
	return nil
}
