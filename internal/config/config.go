package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the dispatch server.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	Redis     RedisConfig
	Twilio    TwilioConfig
	Airtable  AirtableConfig
	Voicemail VoicemailConfig
	Sync      SyncConfig
}

type AppConfig struct {
	Env  string
	Port int

	// HostName is the public base URL Twilio uses to reach this server,
	// e.g. https://dispatch.example.org. Required for webhook callbacks.
	HostName string
}

type RedisConfig struct {
	Host string
	Port int
}

type TwilioConfig struct {
	AccountSID   string
	AuthToken    string
	WorkspaceSID string

	// CallerID is the number presented when dialing out to workers.
	CallerID string

	// VoicemailPhone is the contact number of the protected voicemail worker.
	// The synchronizer must never delete this identity.
	VoicemailPhone string
}

type AirtableConfig struct {
	APIKey string

	// PhoneBase holds the volunteer roster and hours of operation.
	// VMBase holds voicemail records.
	PhoneBase string
	VMBase    string
}

type VoicemailConfig struct {
	Enabled           bool
	TranscribeEnglish bool
}

type SyncConfig struct {
	// RosterInterval is the cadence of the worker-directory synchronizer.
	RosterInterval time.Duration

	// ScheduleInterval is the cadence of the hours-of-operation refresh.
	ScheduleInterval time.Duration
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}
	c.App.HostName = strings.TrimRight(strings.TrimSpace(os.Getenv("HOST_NAME")), "/")

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Twilio.AccountSID = strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID"))
	c.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	c.Twilio.WorkspaceSID = strings.TrimSpace(os.Getenv("TWILIO_WORKSPACE_SID"))
	c.Twilio.CallerID = strings.TrimSpace(os.Getenv("TWILIO_CALLER_ID"))
	c.Twilio.VoicemailPhone = strings.TrimSpace(os.Getenv("TWILIO_VM_PHONE"))

	c.Airtable.APIKey = os.Getenv("AIRTABLE_API_KEY")
	c.Airtable.PhoneBase = strings.TrimSpace(os.Getenv("AIRTABLE_PHONE_BASE"))
	c.Airtable.VMBase = strings.TrimSpace(os.Getenv("AIRTABLE_VM_BASE"))

	c.Voicemail.Enabled = envBool("VOICEMAIL_ENABLED")
	c.Voicemail.TranscribeEnglish = envBool("TRANSCRIBE_ENGLISH")

	// Interval env vars are optional; defaults applied in Validate().
	c.Sync.RosterInterval = mustDuration("ROSTER_SYNC_INTERVAL")
	c.Sync.ScheduleInterval = mustDuration("SCHEDULE_REFRESH_INTERVAL")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}
	if c.App.HostName == "" {
		errs = append(errs, errors.New("HOST_NAME is required"))
	} else if !strings.HasPrefix(c.App.HostName, "http://") && !strings.HasPrefix(c.App.HostName, "https://") {
		errs = append(errs, fmt.Errorf("HOST_NAME must be an absolute URL, got %q", c.App.HostName))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Twilio.AccountSID == "" {
		errs = append(errs, errors.New("TWILIO_ACCOUNT_SID is required"))
	}
	if c.Twilio.AuthToken == "" {
		errs = append(errs, errors.New("TWILIO_AUTH_TOKEN is required"))
	}
	if c.Twilio.WorkspaceSID == "" {
		errs = append(errs, errors.New("TWILIO_WORKSPACE_SID is required"))
	}
	if c.Twilio.CallerID == "" {
		errs = append(errs, errors.New("TWILIO_CALLER_ID is required"))
	}
	if c.Twilio.VoicemailPhone == "" {
		errs = append(errs, errors.New("TWILIO_VM_PHONE is required"))
	}

	if c.Airtable.APIKey == "" {
		errs = append(errs, errors.New("AIRTABLE_API_KEY is required"))
	}
	if c.Airtable.PhoneBase == "" {
		errs = append(errs, errors.New("AIRTABLE_PHONE_BASE is required"))
	}
	if c.Airtable.VMBase == "" {
		errs = append(errs, errors.New("AIRTABLE_VM_BASE is required"))
	}

	if c.Sync.RosterInterval <= 0 {
		// Roster changes are infrequent; a slow default is fine.
		c.Sync.RosterInterval = 12 * time.Hour
	}
	if c.Sync.ScheduleInterval <= 0 {
		c.Sync.ScheduleInterval = 5 * time.Minute
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// CallbackURL builds an absolute URL for a webhook path, e.g. "/api/agent-connected".
func (c Config) CallbackURL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.App.HostName + path
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func envBool(key string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return false
	}
	return b
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
