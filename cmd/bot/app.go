package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"otogi-tell/internal/driver"
	"otogi-tell/internal/kernel"
	"otogi-tell/modules/help"
	"otogi-tell/modules/tell"
	"otogi-tell/pkg/otogi"

	"github.com/spf13/viper"
)

const (
	envConfigFile             = "OTOGI_CONFIG_FILE"
	envPrefix                 = "OTOGI"
	defaultConfigFilePath     = "config/bot.json"
	alternateConfigFilePath   = "bin/config/bot.json"
	defaultDataDir            = "data"
	defaultModuleHookTimeout  = 3 * time.Second
	defaultShutdownTimeout    = 10 * time.Second
	defaultSubscriptionBuffer = 256
	defaultSubscriptionWorker = 2
)

var runtimeModuleNames = []string{"tell", "help"}

type appConfig struct {
	logLevel slog.Level
	dataDir  string

	moduleHookTimeout   time.Duration
	shutdownTimeout     time.Duration
	subscriptionBuffer  int
	subscriptionWorkers int

	drivers        []driver.Definition
	routingDefault *kernel.ModuleRoute
	moduleRoutes   map[string]kernel.ModuleRoute

	tell tell.Config
}

type fileConfig struct {
	LogLevel string            `mapstructure:"log_level"`
	DataDir  string            `mapstructure:"data_dir"`
	Kernel   fileKernelConfig  `mapstructure:"kernel"`
	Drivers  []fileDriverEntry `mapstructure:"drivers"`
	Routing  fileRoutingConfig `mapstructure:"routing"`
	Modules  fileModulesConfig `mapstructure:"modules"`
}

type fileKernelConfig struct {
	ModuleHookTimeout   string `mapstructure:"module_hook_timeout"`
	ShutdownTimeout     string `mapstructure:"shutdown_timeout"`
	SubscriptionBuffer  int    `mapstructure:"subscription_buffer"`
	SubscriptionWorkers int    `mapstructure:"subscription_workers"`
}

type fileDriverEntry struct {
	Name    string         `mapstructure:"name"`
	Type    string         `mapstructure:"type"`
	Enabled *bool          `mapstructure:"enabled"`
	Config  map[string]any `mapstructure:"config"`
}

type fileRoutingConfig struct {
	Default *fileModuleRoute           `mapstructure:"default"`
	Modules map[string]fileModuleRoute `mapstructure:"modules"`
}

type fileModuleRoute struct {
	Sources []fileSourceRef `mapstructure:"sources"`
	Sink    *fileSinkRef    `mapstructure:"sink"`
}

type fileSourceRef struct {
	Platform string `mapstructure:"platform"`
	ID       string `mapstructure:"id"`
}

type fileSinkRef struct {
	Platform string `mapstructure:"platform"`
	ID       string `mapstructure:"id"`
}

type fileModulesConfig struct {
	Tell map[string]any `mapstructure:"tell"`
}

func runBot(ctx context.Context, cfg appConfig, registry *driver.Registry, logOutput io.Writer) error {
	logger := slog.New(slog.NewJSONHandler(logOutput, &slog.HandlerOptions{Level: cfg.logLevel}))
	kernelRuntime := buildKernelRuntime(logger, cfg)

	drivers, sinkDispatcher, err := buildDriverRuntime(ctx, logger, cfg, registry)
	if err != nil {
		return err
	}

	if err := registerRuntimeDrivers(kernelRuntime, drivers); err != nil {
		return err
	}
	if err := registerRuntimeServices(kernelRuntime, logger, sinkDispatcher); err != nil {
		return err
	}
	if err := registerRuntimeModules(ctx, kernelRuntime, cfg); err != nil {
		return err
	}

	if err := kernelRuntime.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run kernel: %w", err)
	}

	return nil
}

func loadConfig(configFile string, registry *driver.Registry) (appConfig, error) {
	configFile, err := resolveConfigFilePath(configFile)
	if err != nil {
		return appConfig{}, err
	}

	cfg, err := readConfigFile(configFile)
	if err != nil {
		return appConfig{}, err
	}
	if err := validateAppConfig(&cfg, registry); err != nil {
		return appConfig{}, fmt.Errorf("validate config file %s: %w", configFile, err)
	}

	return cfg, nil
}

// resolveConfigFilePath prefers an explicit path, then the environment, then
// the well-known locations.
func resolveConfigFilePath(explicit string) (string, error) {
	if configFile := strings.TrimSpace(explicit); configFile != "" {
		return configFile, nil
	}
	if configFile := strings.TrimSpace(os.Getenv(envConfigFile)); configFile != "" {
		return configFile, nil
	}

	for _, candidate := range []string{defaultConfigFilePath, alternateConfigFilePath} {
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				return "", fmt.Errorf("config file %s is a directory", candidate)
			}
			return candidate, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat config file %s: %w", candidate, err)
		}
	}

	return "", fmt.Errorf(
		"config file not found; create %s or %s, or set %s",
		defaultConfigFilePath,
		alternateConfigFilePath,
		envConfigFile,
	)
}

func newConfigReader(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log_level", "info")
	v.SetDefault("data_dir", defaultDataDir)
	v.SetDefault("kernel.module_hook_timeout", defaultModuleHookTimeout.String())
	v.SetDefault("kernel.shutdown_timeout", defaultShutdownTimeout.String())
	v.SetDefault("kernel.subscription_buffer", defaultSubscriptionBuffer)
	v.SetDefault("kernel.subscription_workers", defaultSubscriptionWorker)

	return v
}

func readConfigFile(path string) (appConfig, error) {
	v := newConfigReader(path)
	if err := v.ReadInConfig(); err != nil {
		return appConfig{}, fmt.Errorf("read config file %s: %w", path, err)
	}

	var parsed fileConfig
	if err := v.Unmarshal(&parsed); err != nil {
		return appConfig{}, fmt.Errorf("parse config file %s: %w", path, err)
	}

	cfg, err := applyFileConfig(parsed)
	if err != nil {
		return appConfig{}, fmt.Errorf("parse config file %s: %w", path, err)
	}

	return cfg, nil
}

func applyFileConfig(parsed fileConfig) (appConfig, error) {
	cfg := appConfig{
		dataDir:             strings.TrimSpace(parsed.DataDir),
		subscriptionBuffer:  parsed.Kernel.SubscriptionBuffer,
		subscriptionWorkers: parsed.Kernel.SubscriptionWorkers,
		moduleRoutes:        make(map[string]kernel.ModuleRoute, len(parsed.Routing.Modules)),
	}

	level, err := parseLogLevel(parsed.LogLevel)
	if err != nil {
		return appConfig{}, fmt.Errorf("parse log_level: %w", err)
	}
	cfg.logLevel = level

	if cfg.moduleHookTimeout, err = parsePositiveDuration(parsed.Kernel.ModuleHookTimeout); err != nil {
		return appConfig{}, fmt.Errorf("parse kernel.module_hook_timeout: %w", err)
	}
	if cfg.shutdownTimeout, err = parsePositiveDuration(parsed.Kernel.ShutdownTimeout); err != nil {
		return appConfig{}, fmt.Errorf("parse kernel.shutdown_timeout: %w", err)
	}
	if cfg.subscriptionBuffer <= 0 {
		return appConfig{}, fmt.Errorf("parse kernel.subscription_buffer: must be > 0")
	}
	if cfg.subscriptionWorkers <= 0 {
		return appConfig{}, fmt.Errorf("parse kernel.subscription_workers: must be > 0")
	}

	cfg.drivers = make([]driver.Definition, 0, len(parsed.Drivers))
	for index, entry := range parsed.Drivers {
		enabled := true
		if entry.Enabled != nil {
			enabled = *entry.Enabled
		}
		var raw []byte
		if len(entry.Config) > 0 {
			raw, err = json.Marshal(entry.Config)
			if err != nil {
				return appConfig{}, fmt.Errorf("parse drivers[%d].config: %w", index, err)
			}
		}
		cfg.drivers = append(cfg.drivers, driver.Definition{
			Name:    strings.TrimSpace(entry.Name),
			Type:    strings.TrimSpace(entry.Type),
			Enabled: enabled,
			Config:  raw,
		})
	}

	if parsed.Routing.Default != nil {
		route, err := parseModuleRoute(*parsed.Routing.Default, "routing.default")
		if err != nil {
			return appConfig{}, err
		}
		cfg.routingDefault = &route
	}
	for moduleName, rawRoute := range parsed.Routing.Modules {
		route, err := parseModuleRoute(rawRoute, fmt.Sprintf("routing.modules.%s", moduleName))
		if err != nil {
			return appConfig{}, err
		}
		cfg.moduleRoutes[moduleName] = route
	}

	if parsed.Modules.Tell == nil {
		return appConfig{}, fmt.Errorf("modules.tell is required")
	}
	rawTell, err := json.Marshal(parsed.Modules.Tell)
	if err != nil {
		return appConfig{}, fmt.Errorf("parse modules.tell: %w", err)
	}
	if cfg.tell, err = tell.ParseConfig(rawTell); err != nil {
		return appConfig{}, fmt.Errorf("parse modules.tell: %w", err)
	}

	return cfg, nil
}

func parsePositiveDuration(raw string) (time.Duration, error) {
	duration, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if duration <= 0 {
		return 0, fmt.Errorf("must be > 0")
	}

	return duration, nil
}

func parseModuleRoute(raw fileModuleRoute, scope string) (kernel.ModuleRoute, error) {
	if len(raw.Sources) == 0 {
		return kernel.ModuleRoute{}, fmt.Errorf("%s.sources is required", scope)
	}
	if raw.Sink == nil {
		return kernel.ModuleRoute{}, fmt.Errorf("%s.sink is required", scope)
	}

	sources := make([]otogi.EventSource, 0, len(raw.Sources))
	for index, sourceRef := range raw.Sources {
		source := otogi.EventSource{
			Platform: otogi.Platform(strings.TrimSpace(sourceRef.Platform)),
			ID:       strings.TrimSpace(sourceRef.ID),
		}
		if source.Platform == "" && source.ID == "" {
			return kernel.ModuleRoute{}, fmt.Errorf("%s.sources[%d]: empty source reference", scope, index)
		}
		sources = append(sources, source)
	}

	sink := otogi.EventSink{
		Platform: otogi.Platform(strings.TrimSpace(raw.Sink.Platform)),
		ID:       strings.TrimSpace(raw.Sink.ID),
	}
	if sink.Platform == "" && sink.ID == "" {
		return kernel.ModuleRoute{}, fmt.Errorf("%s.sink: empty sink reference", scope)
	}

	return kernel.ModuleRoute{Sources: sources, Sink: &sink}, nil
}

func validateAppConfig(cfg *appConfig, registry *driver.Registry) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if registry == nil {
		return fmt.Errorf("nil driver registry")
	}

	enabledDrivers := make([]driver.Definition, 0, len(cfg.drivers))
	enabledByName := make(map[string]driver.Definition, len(cfg.drivers))
	seenNames := make(map[string]struct{}, len(cfg.drivers))
	for _, definition := range cfg.drivers {
		if definition.Name == "" {
			return fmt.Errorf("drivers[].name is required")
		}
		if definition.Type == "" {
			return fmt.Errorf("drivers[%s].type is required", definition.Name)
		}
		if _, exists := seenNames[definition.Name]; exists {
			return fmt.Errorf("drivers[%s]: duplicate name", definition.Name)
		}
		seenNames[definition.Name] = struct{}{}
		if !definition.Enabled {
			continue
		}
		if _, err := registry.PlatformForType(definition.Type); err != nil {
			return fmt.Errorf("drivers[%s].type: %w", definition.Name, err)
		}
		enabledDrivers = append(enabledDrivers, definition)
		enabledByName[definition.Name] = definition
	}
	if len(enabledDrivers) == 0 {
		return fmt.Errorf("at least one enabled driver is required")
	}

	for moduleName, route := range cfg.moduleRoutes {
		if !slices.Contains(runtimeModuleNames, moduleName) {
			return fmt.Errorf("routing.modules.%s: unknown module", moduleName)
		}
		if err := validateRouteRefs(route, enabledByName, fmt.Sprintf("routing.modules.%s", moduleName)); err != nil {
			return err
		}
	}
	if cfg.routingDefault != nil {
		if err := validateRouteRefs(*cfg.routingDefault, enabledByName, "routing.default"); err != nil {
			return err
		}
	}

	if len(enabledDrivers) == 1 && cfg.routingDefault == nil {
		sole := enabledDrivers[0]
		platform, err := registry.PlatformForType(sole.Type)
		if err != nil {
			return fmt.Errorf("derive default route from driver %s: %w", sole.Name, err)
		}
		cfg.routingDefault = &kernel.ModuleRoute{
			Sources: []otogi.EventSource{{Platform: platform, ID: sole.Name}},
			Sink:    &otogi.EventSink{Platform: platform, ID: sole.Name},
		}
	}
	if len(enabledDrivers) >= 2 && cfg.routingDefault == nil {
		for _, moduleName := range runtimeModuleNames {
			if _, exists := cfg.moduleRoutes[moduleName]; !exists {
				return fmt.Errorf("routing.default is required in multi-driver mode unless all modules override")
			}
		}
	}

	if cfg.tell.StorePath == "" {
		cfg.tell.StorePath = tell.DefaultStorePath(cfg.dataDir, cfg.tell.BotNick, tellStoreDriver(*cfg, enabledDrivers))
	}

	return nil
}

// tellStoreDriver names the driver instance the tell store belongs to: the
// sink of the tell route when one is pinned, otherwise the first enabled driver.
func tellStoreDriver(cfg appConfig, enabled []driver.Definition) string {
	route, ok := cfg.moduleRoutes["tell"]
	if !ok && cfg.routingDefault != nil {
		route, ok = *cfg.routingDefault, true
	}
	if ok && route.Sink != nil && route.Sink.ID != "" {
		return route.Sink.ID
	}

	return enabled[0].Name
}

func validateRouteRefs(
	route kernel.ModuleRoute,
	enabledByName map[string]driver.Definition,
	scope string,
) error {
	for index, source := range route.Sources {
		if source.ID != "" {
			if _, exists := enabledByName[source.ID]; !exists {
				return fmt.Errorf("%s.sources[%d]: unknown driver id %s", scope, index, source.ID)
			}
		}
	}
	if route.Sink != nil && route.Sink.ID != "" {
		if _, exists := enabledByName[route.Sink.ID]; !exists {
			return fmt.Errorf("%s.sink: unknown driver id %s", scope, route.Sink.ID)
		}
	}

	return nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported level %q", raw)
	}
}

func buildKernelRuntime(logger *slog.Logger, cfg appConfig) *kernel.Kernel {
	return kernel.New(
		kernel.WithLogger(logger),
		kernel.WithModuleHookTimeout(cfg.moduleHookTimeout),
		kernel.WithShutdownTimeout(cfg.shutdownTimeout),
		kernel.WithDefaultSubscriptionBuffer(cfg.subscriptionBuffer),
		kernel.WithDefaultSubscriptionWorkers(cfg.subscriptionWorkers),
		kernel.WithModuleRouting(cfg.routingDefault, cfg.moduleRoutes),
		kernel.WithCommandNicknames(cfg.tell.BotNick),
	)
}

func buildDriverRuntime(
	ctx context.Context,
	logger *slog.Logger,
	cfg appConfig,
	registry *driver.Registry,
) ([]otogi.Driver, otogi.SinkDispatcher, error) {
	if registry == nil {
		return nil, nil, fmt.Errorf("build drivers: nil driver registry")
	}

	runtimes, err := registry.BuildEnabled(ctx, cfg.drivers, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("build drivers: %w", err)
	}

	drivers := make([]otogi.Driver, 0, len(runtimes))
	for _, runtime := range runtimes {
		drivers = append(drivers, runtime.Driver)
	}

	dispatcher, err := driver.NewCompositeSinkDispatcher(runtimes)
	if err != nil {
		return nil, nil, fmt.Errorf("build sink dispatcher: %w", err)
	}

	return drivers, dispatcher, nil
}

func registerRuntimeServices(
	kernelRuntime *kernel.Kernel,
	logger *slog.Logger,
	sinkDispatcher otogi.SinkDispatcher,
) error {
	if err := kernelRuntime.RegisterService(otogi.ServiceLogger, logger); err != nil {
		return fmt.Errorf("register logger service: %w", err)
	}
	if sinkDispatcher == nil {
		return fmt.Errorf("register sink dispatcher service: nil dispatcher")
	}
	if err := kernelRuntime.RegisterService(otogi.ServiceSinkDispatcher, sinkDispatcher); err != nil {
		return fmt.Errorf("register sink dispatcher service: %w", err)
	}

	return nil
}

func registerRuntimeModules(
	ctx context.Context,
	kernelRuntime *kernel.Kernel,
	cfg appConfig,
) error {
	tellModule, err := tell.New(cfg.tell)
	if err != nil {
		return fmt.Errorf("new tell module: %w", err)
	}
	if err := kernelRuntime.RegisterModule(ctx, tellModule); err != nil {
		return fmt.Errorf("register tell module: %w", err)
	}
	if err := kernelRuntime.RegisterModule(ctx, help.New()); err != nil {
		return fmt.Errorf("register help module: %w", err)
	}

	return nil
}

func registerRuntimeDrivers(kernelRuntime *kernel.Kernel, drivers []otogi.Driver) error {
	for _, runtimeDriver := range drivers {
		if err := kernelRuntime.RegisterDriver(runtimeDriver); err != nil {
			return fmt.Errorf("register driver %s: %w", runtimeDriver.Name(), err)
		}
	}

	return nil
}
