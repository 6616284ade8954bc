package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"
)

// Config represents the complete application configuration: Version (semver),
// Node (identity), NATS (connection), Logging, Metrics and Tap (event tap
// tuning).
type Config struct {
	Version string        `json:"version,omitempty"` // Semantic version (e.g., "1.0.0")
	Node    NodeConfig    `json:"node"`
	NATS    NATSConfig    `json:"nats"`
	Logging LoggingConfig `json:"logging"`
	Metrics MetricsConfig `json:"metrics"`
	Tap     TapConfig     `json:"tap"`
}

// NodeConfig identifies the acquisition node. Org and ID become NATS subject
// tokens, so both are validated and normalized to lowercase.
type NodeConfig struct {
	Org         string `json:"org"`                   // Organization namespace (e.g., "neuroacq")
	ID          string `json:"id"`                    // Node identifier (e.g., "rig01")
	Environment string `json:"environment,omitempty"` // "prod", "dev", "test"
}

// NATSConfig defines NATS connection settings
type NATSConfig struct {
	URLs           []string      `json:"urls,omitempty"`
	Name           string        `json:"name,omitempty"` // Client connection name
	MaxReconnects  int           `json:"max_reconnects,omitempty"`
	ReconnectWait  time.Duration `json:"reconnect_wait,omitempty"`
	ConnectTimeout time.Duration `json:"connect_timeout,omitempty"`
	Username       string        `json:"username,omitempty"`
	Password       string        `json:"password,omitempty"`
	Token          string        `json:"token,omitempty"`
	TLS            NATSTLSConfig `json:"tls,omitempty"`
}

// NATSTLSConfig for secure NATS connections
type NATSTLSConfig struct {
	Enabled  bool   `json:"enabled"`
	CertFile string `json:"cert_file,omitempty"`
	KeyFile  string `json:"key_file,omitempty"`
	CAFile   string `json:"ca_file,omitempty"`
}

// LoggingConfig controls the structured logger
type LoggingConfig struct {
	Level     string `json:"level,omitempty"`  // debug, info, warn, error
	Format    string `json:"format,omitempty"` // text or json
	AddSource bool   `json:"add_source,omitempty"`
}

// MetricsConfig controls the Prometheus metrics endpoint
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
	Path    string `json:"path,omitempty"`
}

// TapConfig tunes the event tap: where the channel manifest lives, the
// subject namespace events travel under and the decode pipeline sizing.
type TapConfig struct {
	SubjectPrefix string `json:"subject_prefix,omitempty"` // Root token of event subjects
	Manifest      string `json:"manifest,omitempty"`       // Path to the channel manifest
	DecodeWorkers int    `json:"decode_workers,omitempty"` // Subscriber decode pool size
	DecodeQueue   int    `json:"decode_queue,omitempty"`   // Subscriber decode queue depth
	RingCapacity  int    `json:"ring_capacity,omitempty"`  // Publisher ring buffer capacity
}

// SafeConfig wraps a Config behind a lock so readers and a reloader can share
// it. Get hands out deep copies, so callers never observe a half-applied
// update.
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig wraps cfg; a nil cfg starts empty.
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = &Config{}
	}
	return &SafeConfig{config: cfg}
}

// Get returns a deep copy of the current configuration.
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update swaps in cfg after validating it. On validation failure the previous
// configuration stays in place.
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	sc.mu.Lock()
	sc.config = cfg
	sc.mu.Unlock()
	return nil
}

// Clone deep-copies the configuration through a JSON round trip. If encoding
// fails a shallow copy is returned instead; slices would then be shared, but
// every field of Config survives json.Marshal in practice.
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	data, err := json.Marshal(c)
	if err != nil {
		shallow := *c
		return &shallow
	}
	clone := &Config{}
	if err := json.Unmarshal(data, clone); err != nil {
		shallow := *c
		return &shallow
	}
	return clone
}

// Validate checks the whole configuration and normalizes the node identity to
// lowercase.
func (c *Config) Validate() error {
	org, err := subjectToken("node.org", c.Node.Org)
	if err != nil {
		return err
	}
	c.Node.Org = org

	id, err := subjectToken("node.id", c.Node.ID)
	if err != nil {
		return err
	}
	c.Node.ID = id

	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateNATS(); err != nil {
		return err
	}
	return c.validateTap()
}

// subjectToken lowercases a node identity field and checks that it can appear
// in a NATS subject.
func subjectToken(field, value string) (string, error) {
	if value == "" {
		return "", fmt.Errorf("%s is required", field)
	}
	value = strings.ToLower(value)
	if !isValidNATSSubjectPart(value) {
		return "", fmt.Errorf(
			"%s '%s' is not valid for NATS subjects (must be alphanumeric with dots, dashes, underscores)",
			field, value,
		)
	}
	return value, nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level '%s' is invalid (must be debug, info, warn or error)", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format '%s' is invalid (must be text or json)", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateNATS() error {
	for i, url := range c.NATS.URLs {
		if url == "" {
			return fmt.Errorf("nats.urls[%d] is empty", i)
		}
	}
	if c.NATS.ReconnectWait < 0 {
		return errors.New("nats.reconnect_wait cannot be negative")
	}
	if c.NATS.ConnectTimeout < 0 {
		return errors.New("nats.connect_timeout cannot be negative")
	}

	if !c.NATS.TLS.Enabled {
		return nil
	}
	files := []struct {
		field, path string
	}{
		{"nats.tls.cert_file", c.NATS.TLS.CertFile},
		{"nats.tls.key_file", c.NATS.TLS.KeyFile},
	}
	for _, f := range files {
		if f.path == "" {
			return fmt.Errorf("%s is required when TLS is enabled", f.field)
		}
		if _, err := os.Stat(f.path); err != nil {
			return fmt.Errorf("%s: %w", f.field, err)
		}
	}
	return nil
}

func (c *Config) validateTap() error {
	if c.Tap.SubjectPrefix != "" {
		for _, token := range strings.Split(c.Tap.SubjectPrefix, ".") {
			if !isValidNATSSubjectPart(token) {
				return fmt.Errorf("tap.subject_prefix token '%s' is not valid for NATS subjects", token)
			}
		}
	}

	sizes := []struct {
		field string
		value int
	}{
		{"tap.decode_workers", c.Tap.DecodeWorkers},
		{"tap.decode_queue", c.Tap.DecodeQueue},
		{"tap.ring_capacity", c.Tap.RingCapacity},
	}
	for _, s := range sizes {
		if s.value < 0 {
			return fmt.Errorf("%s cannot be negative", s.field)
		}
	}
	return nil
}

// isValidNATSSubjectPart reports whether s can serve as a single subject
// token: non-empty, alphanumeric plus dots, dashes and underscores.
func isValidNATSSubjectPart(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
		case r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}

// Loader assembles a Config from defaults, layered JSON files and environment
// overrides, in that order of precedence (later wins).
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
}

// NewLoader creates a loader with no layers and validation off.
func NewLoader() *Loader {
	return &Loader{envPrefix: "SIGSTREAMS"}
}

// AddLayer appends a configuration file layer.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation turns on Validate after loading.
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single file, replacing any layers added
// so far.
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load merges all layers over the defaults and applies environment overrides.
func (l *Loader) Load() (*Config, error) {
	cfg := defaultConfig()

	for _, path := range l.layers {
		layer, err := l.readLayer(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		cfg = l.overlay(cfg, layer)
	}

	l.applyEnvOverrides(cfg)

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Node: NodeConfig{
			Environment: "dev",
		},
		NATS: NATSConfig{
			URLs:           []string{"nats://localhost:4222"},
			Name:           "sigstreams",
			MaxReconnects:  -1,
			ReconnectWait:  2 * time.Second,
			ConnectTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
			Path:    "/metrics",
		},
		Tap: TapConfig{
			SubjectPrefix: "sigstreams",
			DecodeWorkers: 4,
			DecodeQueue:   1024,
			RingCapacity:  4096,
		},
	}
}

// readLayer reads one JSON layer into a raw map, converting duration strings
// to nanosecond numbers so they survive the map round trip.
func (l *Loader) readLayer(path string) (map[string]any, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := validateJSONDepth(data); err != nil {
		return nil, fmt.Errorf("invalid JSON structure: %w", err)
	}

	var layer map[string]any
	if err := json.Unmarshal(data, &layer); err != nil {
		return nil, err
	}
	normalizeDurations(layer)
	return layer, nil
}

// normalizeDurations rewrites duration strings under the nats section as
// nanosecond numbers, the form encoding/json produces for time.Duration.
func normalizeDurations(layer map[string]any) {
	nats, ok := layer["nats"].(map[string]any)
	if !ok {
		return
	}
	for _, key := range []string{"reconnect_wait", "connect_timeout"} {
		s, ok := nats[key].(string)
		if !ok {
			continue
		}
		if d, err := time.ParseDuration(s); err == nil {
			nats[key] = d.Nanoseconds()
		}
	}
}

// overlay merges a raw layer map over base. Merge failures keep base
// untouched rather than producing a partial config.
func (l *Loader) overlay(base *Config, layer map[string]any) *Config {
	if layer == nil {
		return base
	}
	baseMap, ok := toMap(base)
	if !ok {
		return base
	}
	merged, ok := fromMap(mergeMaps(baseMap, layer))
	if !ok {
		return base
	}
	return merged
}

// mergeConfigs merges two configs at the struct level. Load works on raw
// layer maps; this form exists for callers holding already-parsed configs.
func (l *Loader) mergeConfigs(base, override *Config) *Config {
	if override == nil {
		return base
	}
	overrideMap, ok := toMap(override)
	if !ok {
		return base
	}
	pruneNils(overrideMap)
	return l.overlay(base, overrideMap)
}

// mergeMaps merges override into base recursively. Nested maps merge key by
// key; for anything else the override value wins. Nil entries are skipped so
// a layer can omit fields without erasing them.
func mergeMaps(base, override map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}
		if sub, ok := v.(map[string]any); ok {
			if baseSub, ok := merged[k].(map[string]any); ok {
				merged[k] = mergeMaps(baseSub, sub)
				continue
			}
		}
		merged[k] = v
	}
	return merged
}

// pruneNils drops nil entries so zero-valued struct fields do not clobber the
// base during a struct-level merge.
func pruneNils(m map[string]any) {
	for k, v := range m {
		switch sub := v.(type) {
		case nil:
			delete(m, k)
		case map[string]any:
			pruneNils(sub)
		}
	}
}

func toMap(cfg *Config) (map[string]any, bool) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, false
	}
	return m, true
}

func fromMap(m map[string]any) (*Config, bool) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, false
	}
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, false
	}
	return cfg, true
}

// envOverrides maps environment suffixes to the field each one replaces.
var envOverrides = []struct {
	suffix string
	apply  func(*Config, string)
}{
	{"_NODE_ORG", func(c *Config, v string) { c.Node.Org = v }},
	{"_NODE_ID", func(c *Config, v string) { c.Node.ID = v }},
	{"_NODE_ENV", func(c *Config, v string) { c.Node.Environment = v }},
	{"_NATS_URLS", func(c *Config, v string) { c.NATS.URLs = strings.Split(v, ",") }},
	{"_NATS_USERNAME", func(c *Config, v string) { c.NATS.Username = v }},
	{"_NATS_PASSWORD", func(c *Config, v string) { c.NATS.Password = v }},
	{"_NATS_TOKEN", func(c *Config, v string) { c.NATS.Token = v }},
	{"_LOG_LEVEL", func(c *Config, v string) { c.Logging.Level = v }},
	{"_METRICS_ADDR", func(c *Config, v string) { c.Metrics.Addr = v }},
	{"_TAP_MANIFEST", func(c *Config, v string) { c.Tap.Manifest = v }},
}

// applyEnvOverrides applies environment variable overrides. Values that fail
// the basic env-var checks are ignored rather than breaking the load.
func (l *Loader) applyEnvOverrides(cfg *Config) {
	for _, o := range envOverrides {
		if val := l.envValue(o.suffix); val != "" {
			o.apply(cfg, val)
		}
	}
}

// envValue reads one prefixed environment variable, dropping values that fail
// validation.
func (l *Loader) envValue(suffix string) string {
	key := l.envPrefix + suffix
	val := os.Getenv(key)
	if err := validateEnvVar(key, val); err != nil {
		return ""
	}
	return val
}

// SaveToFile writes the configuration as indented JSON.
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return safeWriteFile(path, data)
}

// GetOrg returns the organization from node config.
func (c *Config) GetOrg() string {
	return c.Node.Org
}

// GetNode returns the node identifier.
func (c *Config) GetNode() string {
	return c.Node.ID
}

// SubjectRoot returns the root of every subject this node publishes under:
// the tap prefix followed by org and node id.
func (c *Config) SubjectRoot() string {
	prefix := c.Tap.SubjectPrefix
	if prefix == "" {
		prefix = "sigstreams"
	}
	return strings.ToLower(fmt.Sprintf("%s.%s.%s", prefix, c.Node.Org, c.Node.ID))
}

// String returns a JSON representation of the config.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// semVer holds major, minor and patch in comparison order.
type semVer [3]int

// CompareVersions compares two semver strings, returning -1, 0 or 1 as v1 is
// less than, equal to or greater than v2.
func CompareVersions(v1, v2 string) (int, error) {
	a, err := parseSemVer(v1)
	if err != nil {
		return 0, fmt.Errorf("invalid version '%s': %w", v1, err)
	}
	b, err := parseSemVer(v2)
	if err != nil {
		return 0, fmt.Errorf("invalid version '%s': %w", v2, err)
	}

	for i := range a {
		switch {
		case a[i] > b[i]:
			return 1, nil
		case a[i] < b[i]:
			return -1, nil
		}
	}
	return 0, nil
}

// parseSemVer parses "major.minor.patch" with an optional leading "v".
func parseSemVer(version string) (semVer, error) {
	var v semVer
	if version == "" {
		return v, errors.New("version cannot be empty")
	}

	parts := strings.Split(strings.TrimPrefix(version, "v"), ".")
	if len(parts) != 3 {
		return v, fmt.Errorf("version must be in format 'major.minor.patch', got '%s'", version)
	}

	names := [3]string{"major", "minor", "patch"}
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return v, fmt.Errorf("invalid %s version '%s': %w", names[i], part, err)
		}
		v[i] = n
	}
	return v, nil
}

// UnmarshalJSON accepts NATS durations in both forms they occur in: strings
// ("5s") from hand-written files and nanosecond numbers from SaveToFile round
// trips.
func (c *Config) UnmarshalJSON(data []byte) error {
	type Alias Config
	aux := struct {
		NATS struct {
			NATSConfig
			ReconnectWait  any `json:"reconnect_wait"`
			ConnectTimeout any `json:"connect_timeout"`
		} `json:"nats"`
		*Alias
	}{Alias: (*Alias)(c)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	c.NATS = aux.NATS.NATSConfig
	for _, d := range []struct {
		raw any
		dst *time.Duration
	}{
		{aux.NATS.ReconnectWait, &c.NATS.ReconnectWait},
		{aux.NATS.ConnectTimeout, &c.NATS.ConnectTimeout},
	} {
		parsed, err := parseDurationValue(d.raw)
		if err != nil {
			return err
		}
		*d.dst = parsed
	}
	return nil
}

// parseDurationValue interprets a JSON duration that may be a string ("5s")
// or a number (nanoseconds).
func parseDurationValue(v any) (time.Duration, error) {
	switch val := v.(type) {
	case string:
		return time.ParseDuration(val)
	case float64:
		return time.Duration(val), nil
	}
	return 0, nil
}
