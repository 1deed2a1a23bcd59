package dispatch

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the single configuration record the dispatch fabric accepts
// (spec.md §6). The host decides how to load it; Config only knows how to
// fill itself from defaults, environment variables, and a YAML file.
type Config struct {
	CommandQueueCapacity  int  `yaml:"command_queue_capacity"`
	CallbackQueueCapacity int  `yaml:"callback_queue_capacity"`
	RateLimitPerAgent     int  `yaml:"rate_limit_per_agent"`
	RateLimitBurst        int  `yaml:"rate_limit_burst"`
	AuditLoggingEnabled   bool `yaml:"audit_logging_enabled"`
	ValidationEnabled     bool `yaml:"validation_enabled"`
}

// DefaultConfig returns a Config with spec.md §6's source defaults.
func DefaultConfig() *Config {
	return &Config{
		CommandQueueCapacity:  DefaultCommandQueueCapacity,
		CallbackQueueCapacity: DefaultCallbackQueueCapacity,
		RateLimitPerAgent:     DefaultRateLimit,
		RateLimitBurst:        DefaultRateLimit,
		AuditLoggingEnabled:   false,
		ValidationEnabled:     true,
	}
}

// LoadFromYAMLFile loads a Config from a YAML file, starting from
// DefaultConfig so an omitted field keeps its default rather than
// zeroing out.
func LoadFromYAMLFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv overlays NOVA_DISPATCH_*-prefixed environment variables onto
// cfg, following the same "only override when set" shape as
// internal/config.LoadFromEnv.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("NOVA_DISPATCH_COMMAND_QUEUE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CommandQueueCapacity = n
		}
	}
	if v := os.Getenv("NOVA_DISPATCH_CALLBACK_QUEUE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CallbackQueueCapacity = n
		}
	}
	if v := os.Getenv("NOVA_DISPATCH_RATE_LIMIT_PER_AGENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitPerAgent = n
		}
	}
	if v := os.Getenv("NOVA_DISPATCH_RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}
	if v := os.Getenv("NOVA_DISPATCH_AUDIT_LOGGING_ENABLED"); v != "" {
		cfg.AuditLoggingEnabled = v == "true" || v == "1"
	}
	if v := os.Getenv("NOVA_DISPATCH_VALIDATION_ENABLED"); v != "" {
		cfg.ValidationEnabled = v == "true" || v == "1"
	}
}

// Fabric is the fully wired set of dispatch components a host builds from
// a Config: the two ring buffers, the executor, the bridge, and the
// facade, ready for the host to register handlers on and drive from its
// main loop.
type Fabric struct {
	Queue    *CommandQueue
	Router   *CallbackRouter
	Executor *Executor
	Bridge   *ScriptBridge
	Facade   *AgentFacade
}

// NewFabric constructs a Fabric from cfg using runtime as the script
// boundary. Pass NativeRuntime{} for a pure-Go embedding (e.g. the
// AgentFacade.SubmitFuture promise adapter, or tests).
func NewFabric(cfg *Config, runtime Runtime) (*Fabric, error) {
	queue, err := NewCommandQueue(cfg.CommandQueueCapacity)
	if err != nil {
		return nil, err
	}
	router, err := NewCallbackRouter(cfg.CallbackQueueCapacity)
	if err != nil {
		return nil, err
	}

	limiter := NewTokenBucketLimiter(float64(cfg.RateLimitBurst), float64(cfg.RateLimitPerAgent))
	executor := NewExecutor(queue, router, limiter)
	executor.SetAudit(cfg.AuditLoggingEnabled)

	bridge := NewScriptBridge(queue, router, runtime, nil)
	facade := NewAgentFacade(bridge)
	facade.SetValidationEnabled(cfg.ValidationEnabled)

	return &Fabric{
		Queue:    queue,
		Router:   router,
		Executor: executor,
		Bridge:   bridge,
		Facade:   facade,
	}, nil
}
