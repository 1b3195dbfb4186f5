package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/stesse/stesse/internal/adapters/clock"
	"github.com/stesse/stesse/internal/adapters/mqttclient"
	"github.com/stesse/stesse/internal/modules/api"
	embeddedmqtt "github.com/stesse/stesse/internal/modules/embedded_mqtt"
	playermodule "github.com/stesse/stesse/internal/modules/player"
	"github.com/stesse/stesse/internal/player"
	"github.com/stesse/stesse/internal/ports"
	"github.com/stesse/stesse/internal/sinks/gst"
	"github.com/stesse/stesse/internal/sinks/vlc"
	"github.com/stesse/stesse/internal/soundcloud"
	"github.com/stesse/stesse/internal/stessed"
	"github.com/stesse/stesse/pkg/stesse"
)

func main() {
	var (
		configPath  string
		broker      string
		nodeID      string
		topicBase   string
		logLevel    string
		logFormat   string
		logOutput   string
		printConfig bool
		dryRun      bool
		moduleOnly  string
	)

	defaultConfig, err := stessed.DefaultConfigPath()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	flag.StringVar(&configPath, "config", defaultConfig, "config file path")
	flag.StringVar(&broker, "broker", "", "MQTT broker URL override")
	flag.StringVar(&nodeID, "node-id", "", "node id override")
	flag.StringVar(&topicBase, "topic-base", "", "topic base override")
	flag.StringVar(&logLevel, "log-level", "", "log level override")
	flag.StringVar(&logFormat, "log-format", "", "log format override (text|json)")
	flag.StringVar(&logOutput, "log-output", "", "log output override (stdout|stderr)")
	flag.StringVar(&moduleOnly, "module", "", "limit to a single module")
	flag.BoolVar(&printConfig, "print-config", false, "print resolved config and exit")
	flag.BoolVar(&dryRun, "dry-run", false, "validate config and exit")
	flag.Parse()

	cfg, err := stessed.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := applyOverrides(&cfg, broker, nodeID, topicBase, logLevel, logFormat, logOutput); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if printConfig {
		printResolvedConfig(cfg)
		return
	}
	if dryRun {
		return
	}

	logger := stessed.NewLogger(stessed.LogConfig{
		Level:  cfg.Server.LogLevel,
		Format: cfg.Server.LogFormat,
		Output: cfg.Server.LogOutput,
	})
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	skipEmbedded := false
	if moduleOnly != "embedded_mqtt" && cfg.Modules.EmbeddedMQTT.Enabled && cfg.Server.Broker == embeddedBrokerURL(cfg) {
		if err := startEmbeddedBroker(ctx, cfg, logger, cancel); err != nil {
			logger.Error("embedded mqtt failed", zap.Error(err))
			os.Exit(1)
		}
		skipEmbedded = true
	}

	logger.Info("stessed starting",
		zap.String("node_id", cfg.Server.NodeID),
		zap.String("broker", cfg.Server.Broker),
		zap.String("topic_base", cfg.Server.TopicBase),
		zap.Strings("modules", enabledModules(cfg)),
	)

	var client *mqttclient.Client
	if cfg.Server.Broker != "" && moduleOnly != "embedded_mqtt" {
		client, err = mqttclient.New(mqttclient.Options{
			BrokerURL: cfg.Server.Broker,
			ClientID:  fmt.Sprintf("stessed-%d", time.Now().UnixNano()),
			Username:  cfg.Server.Auth.User,
			Password:  cfg.Server.Auth.Pass,
			TLSCA:     cfg.Server.TLS.CA,
			TLSCert:   cfg.Server.TLS.Cert,
			TLSKey:    cfg.Server.TLS.Key,
			Timeout:   2 * time.Second,
			Logger:    logger.Named("mqtt"),
		})
		if err != nil {
			logger.Error("mqtt connection failed", zap.Error(err))
			os.Exit(1)
		}
		defer client.Close()
	}

	modules, err := buildModules(cfg, client, logger, moduleOnly, skipEmbedded)
	if err != nil {
		logger.Error("failed to build modules", zap.Error(err))
		os.Exit(1)
	}

	supervisor := stessed.Supervisor{Logger: logger}
	if err := supervisor.Run(ctx, modules); err != nil {
		logger.Error("supervisor error", zap.Error(err))
		os.Exit(1)
	}
}

func applyOverrides(cfg *stessed.Config, broker, nodeID, topicBase, logLevel, logFormat, logOutput string) error {
	if broker != "" {
		cfg.Server.Broker = broker
	}
	if nodeID != "" {
		cfg.Server.NodeID = nodeID
	}
	if topicBase != "" {
		cfg.Server.TopicBase = topicBase
	}
	if logLevel != "" {
		cfg.Server.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.Server.LogFormat = logFormat
	}
	if logOutput != "" {
		cfg.Server.LogOutput = logOutput
	}
	if cfg.Server.NodeID == "" {
		host, err := os.Hostname()
		if err != nil {
			return err
		}
		cfg.Server.NodeID = host
	}
	if cfg.Server.TopicBase == "" {
		cfg.Server.TopicBase = stesse.BaseTopic
	}
	if cfg.Server.StateDir == "" {
		dir, err := stessed.DefaultStateDir()
		if err != nil {
			return err
		}
		cfg.Server.StateDir = dir
	}
	if cfg.Server.Broker == "" && cfg.Modules.EmbeddedMQTT.Enabled {
		cfg.Server.Broker = embeddedBrokerURL(*cfg)
	}
	// Credentials may be kept out of the config file.
	if cfg.SoundCloud.ClientID == "" {
		cfg.SoundCloud.ClientID = os.Getenv("STESSE_CLIENT_ID")
	}
	if cfg.SoundCloud.ClientSecret == "" {
		cfg.SoundCloud.ClientSecret = os.Getenv("STESSE_CLIENT_SECRET")
	}
	return nil
}

func buildModules(cfg stessed.Config, client *mqttclient.Client, logger *zap.Logger, moduleOnly string, skipEmbedded bool) ([]stessed.ModuleRunner, error) {
	modules := []stessed.ModuleRunner{}
	if cfg.Modules.EmbeddedMQTT.Enabled && !skipEmbedded {
		if moduleOnly == "" || moduleOnly == "embedded_mqtt" {
			mod, err := embeddedmqtt.NewModule(logger.With(zap.String("module", "embedded_mqtt")), embeddedmqtt.Config{
				Listen:         cfg.Modules.EmbeddedMQTT.Listen,
				AllowAnonymous: cfg.Modules.EmbeddedMQTT.AllowAnonymous,
				Username:       cfg.Modules.EmbeddedMQTT.Username,
				Password:       cfg.Modules.EmbeddedMQTT.Password,
				TLSCA:          cfg.Modules.EmbeddedMQTT.TLSCA,
				TLSCert:        cfg.Modules.EmbeddedMQTT.TLSCert,
				TLSKey:         cfg.Modules.EmbeddedMQTT.TLSKey,
			})
			if err != nil {
				return nil, err
			}
			modules = append(modules, stessed.ModuleRunner{
				Name: "embedded_mqtt",
				Run:  mod.Run,
			})
		}
	}

	// The catalog stack is shared between the API and player modules so
	// they reuse one token cache.
	httpClient := &http.Client{Timeout: soundCloudTimeout(cfg)}
	tokens := soundcloud.NewTokenCache(
		logger.Named("soundcloud"),
		httpClient,
		tokenURL(cfg),
		cfg.SoundCloud.ClientID,
		cfg.SoundCloud.ClientSecret,
		clock.Clock{},
	)
	catalog := soundcloud.NewCatalog(logger.Named("catalog"), httpClient, tokens, cfg.SoundCloud.APIBase)
	resolver := soundcloud.NewResolver(logger.Named("resolver"), httpClient, tokens)

	var playerMod *playermodule.Module
	if cfg.Modules.Player.Enabled {
		if moduleOnly == "" || moduleOnly == "player" {
			var pub ports.Publisher
			if client != nil {
				pub = client
			}
			mod, err := playermodule.NewModule(logger.With(zap.String("module", "player")), pub, catalog, resolver, playermodule.Config{
				NodeID:       cfg.Server.NodeID,
				TopicBase:    cfg.Server.TopicBase,
				Sink:         cfg.Modules.Player.Sink,
				DefaultGenre: cfg.Modules.Player.DefaultGenre,
				PublishState: cfg.Modules.Player.PublishState,
				ProxyBase:    proxyBase(cfg),
				StateDir:     cfg.Server.StateDir,
				VLC: vlc.Config{
					BaseURL:  cfg.Modules.Player.VLC.BaseURL,
					Username: cfg.Modules.Player.VLC.Username,
					Password: cfg.Modules.Player.VLC.Password,
					Timeout:  time.Duration(cfg.Modules.Player.VLC.TimeoutMS) * time.Millisecond,
				},
				GStreamer: gst.Config{
					Pipeline: cfg.Modules.Player.GStreamer.Pipeline,
					Device:   cfg.Modules.Player.GStreamer.Device,
				},
			})
			if err != nil {
				return nil, err
			}
			playerMod = mod
			modules = append(modules, stessed.ModuleRunner{
				Name: "player",
				Run:  mod.Run,
			})
		}
	}

	if cfg.Modules.API.Enabled {
		if moduleOnly == "" || moduleOnly == "api" {
			var controller *player.Controller
			if playerMod != nil {
				controller = playerMod.Controller()
			}
			mod, err := api.NewModule(logger.With(zap.String("module", "api")), tokens, catalog, resolver, controller, api.Config{
				Listen:     cfg.Modules.API.Listen,
				CORSOrigin: cfg.Modules.API.CORSOrigin,
				APIBase:    cfg.SoundCloud.APIBase,
			})
			if err != nil {
				return nil, err
			}
			modules = append(modules, stessed.ModuleRunner{
				Name: "api",
				Run:  mod.Run,
			})
		}
	}

	if moduleOnly != "" && len(modules) == 0 {
		return nil, errors.New("no modules enabled")
	}
	return modules, nil
}

func enabledModules(cfg stessed.Config) []string {
	out := []string{}
	if cfg.Modules.EmbeddedMQTT.Enabled {
		out = append(out, "embedded_mqtt")
	}
	if cfg.Modules.Player.Enabled {
		out = append(out, "player")
	}
	if cfg.Modules.API.Enabled {
		out = append(out, "api")
	}
	return out
}

func printResolvedConfig(cfg stessed.Config) {
	fmt.Fprintf(os.Stdout,
		"node_id=%s broker=%s topic_base=%s state_dir=%s log_level=%s log_format=%s log_output=%s\n",
		cfg.Server.NodeID,
		cfg.Server.Broker,
		cfg.Server.TopicBase,
		cfg.Server.StateDir,
		cfg.Server.LogLevel,
		cfg.Server.LogFormat,
		cfg.Server.LogOutput,
	)
}

func soundCloudTimeout(cfg stessed.Config) time.Duration {
	if cfg.SoundCloud.TimeoutMS > 0 {
		return time.Duration(cfg.SoundCloud.TimeoutMS) * time.Millisecond
	}
	return 10 * time.Second
}

func tokenURL(cfg stessed.Config) string {
	if cfg.SoundCloud.TokenURL != "" {
		return cfg.SoundCloud.TokenURL
	}
	return soundcloud.DefaultTokenURL
}

// proxyBase derives the local stream-proxy base URL from the API listen
// address so direct stream URLs resolved by the player are fetched
// through the daemon.
func proxyBase(cfg stessed.Config) string {
	if !cfg.Modules.API.Enabled {
		return ""
	}
	listen := cfg.Modules.API.Listen
	if listen == "" {
		listen = "127.0.0.1:8080"
	}
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "http://" + listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func embeddedBrokerURL(cfg stessed.Config) string {
	listen := cfg.Modules.EmbeddedMQTT.Listen
	if listen == "" {
		listen = "127.0.0.1:1883"
	}
	tlsEnabled := cfg.Modules.EmbeddedMQTT.TLSCert != "" || cfg.Modules.EmbeddedMQTT.TLSKey != "" || cfg.Modules.EmbeddedMQTT.TLSCA != ""
	return embeddedmqtt.BrokerURL(listen, tlsEnabled)
}

func startEmbeddedBroker(ctx context.Context, cfg stessed.Config, logger *zap.Logger, cancel context.CancelFunc) error {
	mod, err := embeddedmqtt.NewModule(logger.With(zap.String("module", "embedded_mqtt")), embeddedmqtt.Config{
		Listen:         cfg.Modules.EmbeddedMQTT.Listen,
		AllowAnonymous: cfg.Modules.EmbeddedMQTT.AllowAnonymous,
		Username:       cfg.Modules.EmbeddedMQTT.Username,
		Password:       cfg.Modules.EmbeddedMQTT.Password,
		TLSCA:          cfg.Modules.EmbeddedMQTT.TLSCA,
		TLSCert:        cfg.Modules.EmbeddedMQTT.TLSCert,
		TLSKey:         cfg.Modules.EmbeddedMQTT.TLSKey,
	})
	if err != nil {
		return err
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- mod.Run(ctx)
	}()
	go func() {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("embedded mqtt exited", zap.Error(err))
			cancel()
		}
	}()

	listen := cfg.Modules.EmbeddedMQTT.Listen
	if listen == "" {
		listen = "127.0.0.1:1883"
	}
	return waitForListen(listen, 3*time.Second)
}

func waitForListen(listen string, timeout time.Duration) error {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return err
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	addr := net.JoinHostPort(host, port)
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("embedded mqtt not ready at %s", addr)
}
