package procdiff

import (
	"os"
	"path/filepath"
	"time"

	"github.com/lance6716/procdiff/pkg/conn"
	"github.com/pingcap/errors"
	"gopkg.in/yaml.v3"
)

// Config is a static struct for procdiff's configuration.
type Config struct {
	TaskName string `yaml:"task_name"`

	DB DB `yaml:"db"`

	// CaseTable is the table the case registration layer writes to; CaseFile,
	// when set, loads cases from a JSON file instead.
	CaseTable string `yaml:"case_table"`
	CaseFile  string `yaml:"case_file"`

	CallTimeoutSeconds int `yaml:"call_timeout_seconds"`
	// MaxRetries bounds full-invocation retries on connection loss. A pointer
	// so an explicit 0 can be told apart from an absent field.
	MaxRetries         *int    `yaml:"max_retries"`
	MaxConcurrentCases int     `yaml:"max_concurrent_cases"`
	FloatTolerance     float64 `yaml:"float_tolerance"`

	WorkDir    string `yaml:"work_dir"`
	ReportFile string `yaml:"report_file"`
	Log        Log    `yaml:"log"`
}

// DB locates the target database holding both procedure variants.
type DB struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	MaxConn  int    `yaml:"max_conn"`
}

// Log configures logging output.
type Log struct {
	Filename string `yaml:"filename"`
}

const defaultWorkSubDir = "procdiff"

// LoadConfig reads a Config from a YAML file.
func LoadConfig(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Annotatef(err, "read config file %s", path)
	}
	cfg := &Config{}
	if err = yaml.Unmarshal(content, cfg); err != nil {
		return nil, errors.Annotatef(err, "parse config file %s", path)
	}
	return cfg, nil
}

func (c *Config) ensureDefaults() {
	if c.TaskName == "" {
		c.TaskName = time.Now().Format(time.RFC3339)
	}
	if c.WorkDir == "" {
		c.WorkDir = filepath.Join(os.TempDir(), defaultWorkSubDir)
	}
	if c.DB.Port == 0 {
		c.DB.Port = 3306
	}
	if c.DB.User == "" {
		c.DB.User = "root"
	}
	if c.CallTimeoutSeconds <= 0 {
		c.CallTimeoutSeconds = 300
	}
	if c.MaxRetries == nil {
		retries := conn.DefaultMaxRetries
		c.MaxRetries = &retries
	} else if *c.MaxRetries < 0 {
		*c.MaxRetries = 0
	}
	if c.MaxConcurrentCases <= 0 {
		c.MaxConcurrentCases = 1
	}
	if c.CaseTable == "" && c.CaseFile == "" {
		c.CaseTable = "test_case"
	}
	if c.DB.MaxConn < c.MaxConcurrentCases+1 {
		// one connection per in-flight case plus one for metadata reads
		c.DB.MaxConn = c.MaxConcurrentCases + 1
	}
}
