package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL   = "https://gitlab.com/api/v4"
	DefaultTimeout   = 30 * time.Second
	DefaultInterval  = 15 * time.Second
	DefaultRef       = "main"
	DefaultStatePath = "~/.cache/gitlab-ci-runner/state.json"

	DefaultUrgency        = "normal"
	DefaultFailureUrgency = "critical"
	DefaultExpire         = 10 * time.Second
)

var ErrTokenRequired = errors.New("GITLAB_TOKEN is required")

type Config struct {
	GitLab struct {
		BaseURL      string        `yaml:"base_url"`
		Token        string        `yaml:"token"`
		TriggerToken string        `yaml:"trigger_token"`
		Timeout      time.Duration `yaml:"timeout"`
	} `yaml:"gitlab"`

	Project struct {
		ID  int64  `yaml:"id"`
		Ref string `yaml:"ref"`
	} `yaml:"project"`

	// MaxPolls bounds the status checks of one wait; 0 polls until the
	// run finishes.
	Poll struct {
		Interval time.Duration `yaml:"interval"`
		MaxPolls uint64        `yaml:"max_polls,omitempty"`
	} `yaml:"poll"`

	Log struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file,omitempty"`
		MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
		MaxBackups int    `yaml:"max_backups,omitempty"`
		MaxAgeDays int    `yaml:"max_age_days,omitempty"`
	} `yaml:"log"`

	State struct {
		Path string `yaml:"path"`
	} `yaml:"state"`

	// Strict notifications fail the run when notify-send fails. Runs that do
	// not succeed are sent with FailureUrgency.
	Notify struct {
		Enabled        bool          `yaml:"enabled"`
		Strict         bool          `yaml:"strict,omitempty"`
		Urgency        string        `yaml:"urgency"`
		FailureUrgency string        `yaml:"failure_urgency"`
		Expire         time.Duration `yaml:"expire"`
	} `yaml:"notify"`
}

// Defaults returns a config with every default filled in and no secrets.
func Defaults() Config {
	var c Config
	c.GitLab.BaseURL = DefaultBaseURL
	c.GitLab.Timeout = DefaultTimeout
	c.Project.Ref = DefaultRef
	c.Poll.Interval = DefaultInterval
	c.Log.Level = "info"
	c.State.Path = DefaultStatePath
	c.Notify.Urgency = DefaultUrgency
	c.Notify.FailureUrgency = DefaultFailureUrgency
	c.Notify.Expire = DefaultExpire
	return c
}

// Load reads path (a missing file is fine), applies environment overrides
// and validates. A config that fails validation is still returned so callers
// can inspect it.
func Load(path string) (Config, error) {
	c := Defaults()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &c); err != nil {
				return c, err
			}
		case !errors.Is(err, os.ErrNotExist):
			return c, err
		}
	}

	if v := os.Getenv("GITLAB_BASE_URL"); v != "" {
		c.GitLab.BaseURL = v
	}

	if v := os.Getenv("GITLAB_TOKEN"); v != "" {
		c.GitLab.Token = v
	}

	if v := os.Getenv("GITLAB_TRIGGER_TOKEN"); v != "" {
		c.GitLab.TriggerToken = v
	}

	if v := os.Getenv("GITLAB_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.GitLab.Timeout = d
		}
	}

	if v := os.Getenv("GITLAB_PROJECT_ID"); v != "" {
		if pid, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Project.ID = pid
		}
	}

	if v := os.Getenv("GITLAB_REF"); v != "" {
		c.Project.Ref = v
	}

	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Poll.Interval = d
		}
	}

	if v := os.Getenv("POLL_MAX_POLLS"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			c.Poll.MaxPolls = n
		}
	}

	if v := os.Getenv("NOTIFY_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Notify.Enabled = b
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}

	if v := os.Getenv("LOG_PATH"); v != "" {
		c.Log.File = v
	}

	if v := os.Getenv("STATE_PATH"); v != "" {
		c.State.Path = v
	}

	c.Normalize()

	if c.GitLab.Token == "" {
		return c, ErrTokenRequired
	}

	return c, nil
}

// Normalize restores defaults for empty or non-positive values. Callers that
// override fields after Load should call it again.
func (c *Config) Normalize() {
	if c.GitLab.BaseURL == "" {
		c.GitLab.BaseURL = DefaultBaseURL
	}

	if c.GitLab.Timeout <= 0 {
		c.GitLab.Timeout = DefaultTimeout
	}

	if c.Poll.Interval <= 0 {
		c.Poll.Interval = DefaultInterval
	}

	if c.Project.Ref == "" {
		c.Project.Ref = DefaultRef
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.State.Path == "" {
		c.State.Path = DefaultStatePath
	}

	if c.Notify.Urgency == "" {
		c.Notify.Urgency = DefaultUrgency
	}

	if c.Notify.FailureUrgency == "" {
		c.Notify.FailureUrgency = DefaultFailureUrgency
	}

	if c.Notify.Expire <= 0 {
		c.Notify.Expire = DefaultExpire
	}

	c.State.Path = expandHome(c.State.Path)
	c.Log.File = expandHome(c.Log.File)
}

func Save(path string, c Config) error {
	if path == "" {
		return errors.New("empty config path")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	lockFile := path + ".lock"
	lf, err := os.OpenFile(lockFile, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return err
	}
	defer func() { _ = lf.Close() }()

	if runtime.GOOS != "windows" {
		if err := syscall.Flock(int(lf.Fd()), syscall.LOCK_EX); err != nil {
			return err
		}
		defer func() { _ = syscall.Flock(int(lf.Fd()), syscall.LOCK_UN) }()
	}

	b, err := yaml.Marshal(&c)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}

	defer func() { _ = f.Close() }()

	if _, err := f.Write(b); err != nil {
		return err
	}

	if err := f.Sync(); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}

func expandHome(p string) string {
	if strings.HasPrefix(p, "~/") {
		if h, _ := os.UserHomeDir(); h != "" {
			return h + p[1:]
		}
	}
	return p
}
