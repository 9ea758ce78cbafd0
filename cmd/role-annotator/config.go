package main

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/theimaginaryfoundation/role-annotator/annotation"
	"github.com/theimaginaryfoundation/role-annotator/annotation/connections"
	"github.com/theimaginaryfoundation/role-annotator/annotation/provider"
)

const defaultOutputTemplate = "results/{{.Mode}}_{{.Approach}}{{if .Anonymize}}_hashed{{end}}.csv"

type Config struct {
	Input string `yaml:"input"`
	Mode  string `yaml:"mode"`

	Approach           string `yaml:"approach"`
	Anonymize          bool   `yaml:"anonymize_speakers"`
	OutputPathTemplate string `yaml:"output_path_template"`
	Output             string `yaml:"output"`
	DSN                string `yaml:"dsn"`

	Backend          string   `yaml:"backend"`
	Model            string   `yaml:"model"`
	APIKey           string   `yaml:"api_key"`
	BaseURL          string   `yaml:"base_url"`
	Temperature      *float64 `yaml:"temperature"`
	MaxOutputTokens  int      `yaml:"max_output_tokens"`
	StructuredOutput bool     `yaml:"structured_output"`
	Extractor        string   `yaml:"extractor"`
	ResponseTemplate string   `yaml:"response_template_file"`

	MaxRetries   int           `yaml:"max_retries"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
	MaxDialogues int           `yaml:"max_dialogues"`

	Summaries    string `yaml:"summaries"`
	SummaryScope string `yaml:"summary_scope"`

	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
}

func (c Config) Validate() error {
	var errs []error
	if c.Input == "" {
		errs = append(errs, errors.New("missing --input"))
	}
	if c.Mode == "" {
		errs = append(errs, errors.New("missing --mode"))
	}
	if _, ok := annotation.Approach(c.Approach).Options(); !ok {
		errs = append(errs, fmt.Errorf("unknown approach %q (want one of %v)", c.Approach, annotation.Approaches))
	}
	if c.Output == "" && c.OutputPathTemplate == "" {
		errs = append(errs, errors.New("missing --output or output_path_template"))
	}
	if c.Backend == "" {
		errs = append(errs, errors.New("missing --backend"))
	}
	if c.Model == "" {
		errs = append(errs, errors.New("missing --model"))
	}
	if c.StructuredOutput && c.Backend != provider.BackendOpenAI {
		errs = append(errs, fmt.Errorf("structured output needs the %s backend", provider.BackendOpenAI))
	}
	if _, ok := annotation.ExtractorByName(c.Extractor); !ok {
		errs = append(errs, fmt.Errorf("unknown extractor %q", c.Extractor))
	}
	if c.MaxRetries < 1 {
		errs = append(errs, errors.New("max-retries must be >= 1"))
	}
	if c.RetryDelay < 0 {
		errs = append(errs, errors.New("retry-delay must be >= 0"))
	}
	if c.MaxDialogues < 0 {
		errs = append(errs, errors.New("max-dialogues must be >= 0"))
	}
	if c.MaxOutputTokens < 0 {
		errs = append(errs, errors.New("max-output-tokens must be >= 0"))
	}
	if !connections.Scope(c.SummaryScope).Valid() {
		errs = append(errs, fmt.Errorf("unknown summary scope %q (want one of %v)", c.SummaryScope, connections.Scopes))
	}
	return errors.Join(errs...)
}

func defaultConfig() Config {
	return Config{
		Input:              "data/test_sent_emo.csv",
		Mode:               "test",
		Approach:           string(annotation.ApproachBaseline),
		OutputPathTemplate: defaultOutputTemplate,
		Backend:            provider.BackendOllama,
		Model:              "mistral",
		Extractor:          "regex",
		MaxRetries:         annotation.DefaultMaxRetries,
		SummaryScope:       string(connections.ScopeDialogue),
	}
}

// PromptOptions resolves the approach preset; --anonymize forces speaker hashing on any preset.
func (c Config) PromptOptions() annotation.PromptOptions {
	opts, _ := annotation.Approach(c.Approach).Options()
	opts.Anonymize = opts.Anonymize || c.Anonymize
	return opts
}

// OutputPath returns --output, or the template rendered with Mode, Approach and Anonymize.
// Anonymize is the explicit setting, so the hashed preset does not get a second suffix.
func (c Config) OutputPath() (string, error) {
	if c.Output != "" {
		return c.Output, nil
	}
	tmpl, err := template.New("output").Option("missingkey=error").Parse(c.OutputPathTemplate)
	if err != nil {
		return "", fmt.Errorf("output_path_template: %w", err)
	}
	var b bytes.Buffer
	err = tmpl.Execute(&b, struct {
		Mode      string
		Approach  string
		Anonymize bool
	}{c.Mode, c.Approach, c.Anonymize})
	if err != nil {
		return "", fmt.Errorf("output_path_template: %w", err)
	}
	return b.String(), nil
}

func (c Config) ProviderConfig() provider.Config {
	return provider.Config{
		Backend:         c.Backend,
		Model:           c.Model,
		APIKey:          c.APIKey,
		BaseURL:         c.BaseURL,
		Temperature:     c.Temperature,
		MaxOutputTokens: c.MaxOutputTokens,
	}
}

func readConfigFile(fsys afero.Fs, path string, cfg *Config) error {
	b, err := afero.ReadFile(fsys, path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv("OPENAI_API_KEY"); v != "" && cfg.APIKey == "" && cfg.Backend == provider.BackendOpenAI {
		cfg.APIKey = v
	}
	if v := getenv("ROLE_ANNOTATOR_DSN"); v != "" {
		cfg.DSN = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

func addConfigFlags(fs *pflag.FlagSet) {
	d := defaultConfig()
	fs.String("config", "", "YAML config file")
	fs.String("env-file", ".env", "dotenv file loaded into the environment if present")

	fs.String("input", d.Input, "dataset (.csv or .xlsx)")
	fs.String("mode", d.Mode, "dataset split name used in the output file name")
	fs.String("approach", d.Approach, "prompt approach: baseline, hashed or context")
	fs.Bool("anonymize", d.Anonymize, "replace speaker names with Person A, Person B, ...")
	fs.String("output", "", "results file (.csv or .xlsx); overrides output_path_template")
	fs.String("dsn", "", "PostgreSQL DSN; stores results in the database instead of a file")

	fs.String("backend", d.Backend, "model backend: openai, ollama, anthropic, gemini, deepseek, mistral, groq, llamacpp, llamafile")
	fs.String("model", d.Model, "model name")
	fs.String("api-key", "", "API key (or OPENAI_API_KEY for the openai backend)")
	fs.String("base-url", "", "override the backend endpoint")
	fs.Float64("temperature", 0, "sampling temperature (backend default when unset)")
	fs.Int("max-output-tokens", 0, "cap on generated tokens (0 = backend default)")
	fs.Bool("structured-output", false, "request strict JSON schema output (openai only)")
	fs.String("extractor", d.Extractor, "response extractor: regex, json or auto")
	fs.String("response-template", "", "file holding the answer template; {question} is replaced by the prompt")

	fs.Int("max-retries", d.MaxRetries, "attempts per dialogue")
	fs.Duration("retry-delay", 0, "delay between attempts")
	fs.Int("max-dialogues", 0, "stop after this many dialogues, counting skipped ones (0 = all)")

	fs.String("summaries", "", "connection summaries JSON (from the summarize command)")
	fs.String("summary-scope", d.SummaryScope, "scope used when summaries are computed: dialogue, episode or dataset")

	fs.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	fs.String("log-level", "", "debug, info, warn or error (default LOG_LEVEL, then info)")
	fs.String("log-format", "", "text or json (default by ENVIRONMENT)")
}

// applyFlags copies every flag set on the command line over cfg.
func applyFlags(fs *pflag.FlagSet, cfg *Config) error {
	var errs []error
	str := func(name string, dst *string) {
		if fs.Changed(name) {
			v, err := fs.GetString(name)
			errs = append(errs, err)
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(name string, dst *int) {
		if fs.Changed(name) {
			v, err := fs.GetInt(name)
			errs = append(errs, err)
			*dst = v
		}
	}
	flag := func(name string, dst *bool) {
		if fs.Changed(name) {
			v, err := fs.GetBool(name)
			errs = append(errs, err)
			*dst = v
		}
	}

	str("input", &cfg.Input)
	str("mode", &cfg.Mode)
	str("approach", &cfg.Approach)
	flag("anonymize", &cfg.Anonymize)
	str("output", &cfg.Output)
	str("dsn", &cfg.DSN)
	str("backend", &cfg.Backend)
	str("model", &cfg.Model)
	str("api-key", &cfg.APIKey)
	str("base-url", &cfg.BaseURL)
	if fs.Changed("temperature") {
		v, err := fs.GetFloat64("temperature")
		errs = append(errs, err)
		cfg.Temperature = &v
	}
	num("max-output-tokens", &cfg.MaxOutputTokens)
	flag("structured-output", &cfg.StructuredOutput)
	str("extractor", &cfg.Extractor)
	str("response-template", &cfg.ResponseTemplate)
	num("max-retries", &cfg.MaxRetries)
	if fs.Changed("retry-delay") {
		v, err := fs.GetDuration("retry-delay")
		errs = append(errs, err)
		cfg.RetryDelay = v
	}
	num("max-dialogues", &cfg.MaxDialogues)
	str("summaries", &cfg.Summaries)
	str("summary-scope", &cfg.SummaryScope)
	str("metrics-addr", &cfg.MetricsAddr)
	str("log-level", &cfg.LogLevel)
	str("log-format", &cfg.LogFormat)
	return errors.Join(errs...)
}

// resolveConfig layers defaults, the YAML file, the environment and the command line, in that
// order of precedence.
func resolveConfig(fsys afero.Fs, fs *pflag.FlagSet, getenv func(string) string) (Config, error) {
	cfg := defaultConfig()
	path, err := fs.GetString("config")
	if err != nil {
		return Config{}, err
	}
	if path != "" {
		if err := readConfigFile(fsys, path, &cfg); err != nil {
			return Config{}, err
		}
	}
	// Backend may come from the command line; the API key lookup depends on it.
	if fs.Changed("backend") {
		cfg.Backend, _ = fs.GetString("backend")
	}
	applyEnv(&cfg, getenv)
	if err := applyFlags(fs, &cfg); err != nil {
		return Config{}, err
	}
	// Schema-constrained output is JSON; keep the regex scan as a fallback.
	if cfg.StructuredOutput && !fs.Changed("extractor") && cfg.Extractor == "regex" {
		cfg.Extractor = "auto"
	}
	return cfg, nil
}
