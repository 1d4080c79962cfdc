package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by [ApplyDefaults].
const (
	DefaultListenAddr      = ":8080"
	DefaultCORSOrigin      = "*"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultMCPPath         = "/mcp"
	DefaultSQLitePath      = "claire-usage.db"
	DefaultUsageLimit      = 3
	DefaultServiceName     = "claire"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"groq", "openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "llamacpp"},
	"tts": {"sarvam", "elevenlabs", "coqui", "remote"},
	"stt": {"whisper"},
}

// envRef matches ${NAME} references. Bare $NAME is left alone so that
// literal dollar signs in values survive.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnv replaces every ${NAME} in data with the value of the environment
// variable NAME. Unset variables expand to the empty string.
func ExpandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(m []byte) []byte {
		name := envRef.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expands ${ENV} references,
// applies defaults and validates the result. An empty document yields the
// default config.
func LoadFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(ExpandEnv(data)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills every zero-valued setting that has a default.
func ApplyDefaults(cfg *Config) {
	s := &cfg.Server
	s.ListenAddr = orDefault(s.ListenAddr, DefaultListenAddr)
	if s.LogLevel == "" {
		s.LogLevel = LogInfo
	}
	s.CORSOrigin = orDefault(s.CORSOrigin, DefaultCORSOrigin)
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}

	g := &cfg.Gateway
	if g.MaxInputChars == 0 {
		g.MaxInputChars = 1600
	}
	if g.Timeout == 0 {
		g.Timeout = 20 * time.Second
	}
	if g.MaxAttempts == 0 {
		g.MaxAttempts = 1
	}
	if g.RetryDelay == 0 {
		g.RetryDelay = time.Second
	}
	if g.Temperature == 0 {
		g.Temperature = 0.2
	}
	if g.MaxTokens == 0 {
		g.MaxTokens = 450
	}

	sp := &cfg.Speech
	if sp.MaxChunkChars == 0 {
		sp.MaxChunkChars = 250
	}
	sp.DefaultVoice = orDefault(sp.DefaultVoice, "anushka")
	sp.DefaultLanguage = orDefault(sp.DefaultLanguage, "en-IN")
	if sp.ChunkTimeout == 0 {
		sp.ChunkTimeout = 20 * time.Second
	}

	su := &cfg.Support
	if su.Temperature == 0 {
		su.Temperature = 0.7
	}
	if su.MaxTokens == 0 {
		su.MaxTokens = 256
	}
	if su.Timeout == 0 {
		su.Timeout = 20 * time.Second
	}

	u := &cfg.Usage
	if u.Limit == 0 {
		u.Limit = DefaultUsageLimit
	}
	if u.Store == "" {
		u.Store = UsageStoreMemory
	}
	u.SQLitePath = orDefault(u.SQLitePath, DefaultSQLitePath)

	cfg.MCP.Path = orDefault(cfg.MCP.Path, DefaultMCPPath)
	cfg.Telemetry.ServiceName = orDefault(cfg.Telemetry.ServiceName, DefaultServiceName)
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil && (cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Providers
	p := cfg.Providers
	validateProviderName("llm", p.LLM.Name)
	validateProviderName("tts", p.TTS.Name)
	validateProviderName("stt", p.STT.Name)
	errs = append(errs, validateFallbacks("llm", p.LLM, p.LLMFallbacks)...)
	errs = append(errs, validateFallbacks("tts", p.TTS, p.TTSFallbacks)...)
	errs = append(errs, validateFallbacks("stt", p.STT, p.STTFallbacks)...)
	if p.LLM.Name == "" {
		slog.Warn("providers.llm is not configured; summaries and quizzes will use the local fallback")
	}

	// Gateway
	g := cfg.Gateway
	if g.MaxInputChars < 0 {
		errs = append(errs, fmt.Errorf("gateway.max_input_chars %d must not be negative", g.MaxInputChars))
	}
	if g.Timeout < 0 {
		errs = append(errs, fmt.Errorf("gateway.timeout %s must not be negative", g.Timeout))
	}
	if g.MaxAttempts < 0 || g.MaxAttempts > 5 {
		errs = append(errs, fmt.Errorf("gateway.max_attempts %d is out of range [1, 5]", g.MaxAttempts))
	}
	if g.RetryDelay < 0 {
		errs = append(errs, fmt.Errorf("gateway.retry_delay %s must not be negative", g.RetryDelay))
	}
	if g.Temperature < 0 || g.Temperature > 2 {
		errs = append(errs, fmt.Errorf("gateway.temperature %.2f is out of range [0, 2]", g.Temperature))
	}
	if g.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("gateway.max_tokens %d must not be negative", g.MaxTokens))
	}

	// Speech
	if cfg.Speech.MaxChunkChars < 0 {
		errs = append(errs, fmt.Errorf("speech.max_chunk_chars %d must not be negative", cfg.Speech.MaxChunkChars))
	}
	if cfg.Speech.ChunkTimeout < 0 {
		errs = append(errs, fmt.Errorf("speech.chunk_timeout %s must not be negative", cfg.Speech.ChunkTimeout))
	}

	// Support
	if cfg.Support.Temperature < 0 || cfg.Support.Temperature > 2 {
		errs = append(errs, fmt.Errorf("support.temperature %.2f is out of range [0, 2]", cfg.Support.Temperature))
	}

	// Usage
	u := cfg.Usage
	if u.Limit < 0 {
		errs = append(errs, fmt.Errorf("usage.limit %d must not be negative", u.Limit))
	}
	if u.Store != "" && !u.Store.IsValid() {
		errs = append(errs, fmt.Errorf("usage.store %q is invalid; valid values: memory, sqlite, redis", u.Store))
	}
	if u.Store == UsageStoreRedis && u.RedisAddr == "" {
		errs = append(errs, errors.New("usage.redis_addr is required when usage.store is redis"))
	}

	// Telemetry
	if r := cfg.Telemetry.SampleRatio(); r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("telemetry.trace_sample_ratio %.2f is out of range [0, 1]", r))
	}

	// History
	if cfg.History.PostgresDSN == "" {
		slog.Warn("history.postgres_dsn is empty; history will be kept in memory only")
	}

	// MCP
	if cfg.MCP.Path != "" && !strings.HasPrefix(cfg.MCP.Path, "/") {
		errs = append(errs, fmt.Errorf("mcp.path %q must start with /", cfg.MCP.Path))
	}

	return errors.Join(errs...)
}

// validateFallbacks checks that every fallback entry is named, that no entry
// repeats and that fallbacks are only configured alongside a primary.
func validateFallbacks(kind string, primary ProviderEntry, fallbacks []ProviderEntry) []error {
	var errs []error
	if primary.Name == "" && len(fallbacks) > 0 {
		errs = append(errs, fmt.Errorf("providers.%s_fallbacks requires providers.%s", kind, kind))
	}
	seen := map[string]bool{}
	if primary.Name != "" {
		seen[entryKey(primary)] = true
	}
	for i, fb := range fallbacks {
		prefix := fmt.Sprintf("providers.%s_fallbacks[%d]", kind, i)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		validateProviderName(kind, fb.Name)
		key := entryKey(fb)
		if seen[key] {
			errs = append(errs, fmt.Errorf("%s duplicates an earlier %s provider", prefix, kind))
		}
		seen[key] = true
	}
	return errs
}

// entryKey identifies a provider entry. The same provider may appear twice
// with a different model or endpoint.
func entryKey(e ProviderEntry) string {
	return e.Name + "|" + e.Model + "|" + e.BaseURL
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
