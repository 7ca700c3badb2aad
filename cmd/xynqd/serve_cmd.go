package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/joeycumines/logiface"
	"github.com/spf13/cobra"

	"github.com/xynqdb/xynq/internal/config"
	"github.com/xynqdb/xynq/internal/endpoint"
	"github.com/xynqdb/xynq/internal/netx"
	"github.com/xynqdb/xynq/internal/slang"
	"github.com/xynqdb/xynq/internal/storage"
	"github.com/xynqdb/xynq/internal/task"
	"github.com/xynqdb/xynq/internal/types"
	"github.com/xynqdb/xynq/internal/xlog"
)

// defaultBindAddrs mirrors main.cc's tcp.bind default.
var defaultBindAddrs = []string{"0.0.0.0:9920"}

func newServeCommand() *cobra.Command {
	var configPath string
	var sets []string
	var listens []string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the xynq database server",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, explicit := resolveConfigPath(configPath)
			cfg, err := loadConfig(path, explicit, sets, listens)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the config file (default: $XYNQD_CONFIG or ./xynqdb.conf)")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "override a config key, as key=value (repeatable)")
	cmd.Flags().StringArrayVar(&listens, "listen", nil, "listen on this address instead of tcp.bind from config (repeatable)")
	return cmd
}

// buildLogger turns the log.* config keys into an xlog.Logger,
// mirroring main.cc's CreateLog - minus the syslog destination, which
// has no portable Go equivalent in the teacher's logging stack and is
// dropped rather than faked.
func buildLogger(cfg *config.Config) (*xlog.Logger, error) {
	level, err := parseLogLevel(cfg.StringOr("log.level", "info"))
	if err != nil {
		return nil, err
	}

	var w io.Writer = io.Discard
	if cfg.BoolOr("log.stdout", true) {
		w = os.Stderr
	}
	if file := cfg.StringOr("log.file", ""); file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("xynqd: opening log.file %q: %w", file, err)
		}
		if w == io.Discard {
			w = f
		} else {
			w = io.MultiWriter(w, f)
		}
	}

	return xlog.New(xlog.WithWriter(w), xlog.WithLevel(level)), nil
}

func parseLogLevel(s string) (logiface.Level, error) {
	switch s {
	case "error":
		return logiface.LevelError, nil
	case "warning":
		return logiface.LevelWarning, nil
	case "info":
		return logiface.LevelInformational, nil
	case "verbose":
		return logiface.LevelDebug, nil
	default:
		return 0, fmt.Errorf("xynqd: invalid log.level %q (want error|warning|info|verbose)", s)
	}
}

func resolveNumThreads(cfg *config.Config) (int, error) {
	s := cfg.StringOr("task.num-threads", "auto")
	if s == "auto" {
		return task.AutoDetectThreads, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("xynqd: invalid task.num-threads %q", s)
	}
	return n, nil
}

func resolveBindAddrs(cfg *config.Config) ([]string, error) {
	vs, err := cfg.GetList("tcp.bind")
	if err != nil {
		return defaultBindAddrs, nil
	}
	addrs := make([]string, len(vs))
	for i, v := range vs {
		if v.Kind != config.KindString {
			return nil, fmt.Errorf("xynqd: tcp.bind entries must be strings")
		}
		addrs[i] = v.Str
	}
	return addrs, nil
}

// resolveTCPParameters mirrors main.cc's TcpParameters construction -
// note its CLI-observed defaults (listen-backlog 512, keep-alive idle/
// interval 20/20) differ from internal/netx.DefaultParameters' own
// struct-level defaults (1024, 2/10); the config keys below follow
// main.cc's defaults, since that's the contract an operator reading
// this command's --help sees, while netx's own defaults remain
// whatever a caller gets for free when constructing a Parameters
// without reading any config at all.
func resolveTCPParameters(cfg *config.Config) netx.Parameters {
	return netx.Parameters{
		ListenBacklog: int(cfg.Int64Or("tcp.listen-backlog", 512)),
		ReuseAddr:     cfg.BoolOr("tcp.reuse-bind-addr", false),
		KeepAlive: netx.KeepAlive{
			Enable:      cfg.BoolOr("tcp.keep-alive.enable", false),
			IdleSec:     int(cfg.Int64Or("tcp.keep-alive.idle", 20)),
			IntervalSec: int(cfg.Int64Or("tcp.keep-alive.interval", 20)),
			NumProbes:   int(cfg.Int64Or("tcp.keep-alive.probes", 8)),
		},
	}
}

func resolveExecFiles(cfg *config.Config) []string {
	vs, err := cfg.GetList("exec")
	if err != nil {
		return nil
	}
	files := make([]string, 0, len(vs))
	for _, v := range vs {
		if v.Kind == config.KindString {
			files = append(files, v.Str)
		}
	}
	return files
}

// serve wires up the task runtime, storage, Slang environment and TCP
// listeners and blocks until ctx is cancelled or the task manager's Run
// returns. Construction order: log, type manager, storage, slang env,
// task manager (with the per-thread deps hook), tcp listeners, exec
// files, run.
func serve(ctx context.Context, cfg *config.Config) error {
	log, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	cfg.Enumerate(func(key, value string) {
		log.Info().Str("key", key).Str("value", value).Log("config")
	})

	numThreads, err := resolveNumThreads(cfg)
	if err != nil {
		return err
	}
	maxEvents := int(cfg.Int64Or("events.max-events-at-once", 1024))

	typeManager := types.NewTypeManager(
		types.Int64Schema,
		types.Uint64Schema,
		types.Float64Schema,
		types.StringSchema,
	)
	store := storage.NewStorage()
	jsonHandler := slang.NewJSONPayloadHandler(store)
	env := slang.NewDefaultEnv(jsonHandler)
	nopCount := slang.NewNopCounter()

	m, err := task.New(task.Config{
		Log:             xlog.TaskAdapter{Log: log},
		MaxEventsAtOnce: maxEvents,
		NumThreads:      numThreads,
		UserDataFactory: func(threadIndex int) any {
			return &slang.Deps{
				Storage:     store,
				Types:       typeManager.CreateVault(),
				TypeManager: typeManager,
				NopCount:    nopCount,
			}
		},
	})
	if err != nil {
		return fmt.Errorf("xynqd: creating task manager: %w", err)
	}

	bindAddrs, err := resolveBindAddrs(cfg)
	if err != nil {
		return err
	}
	handler := func(tc *task.Context, name string, stream *netx.Stream) {
		deps, _ := tc.UserData().(*slang.Deps)
		endpoint.New(name, stream, env, deps).Serve(tc)
	}
	if err := netx.Listen(m, bindAddrs, handler, resolveTCPParameters(cfg)); err != nil {
		return fmt.Errorf("xynqd: starting listeners: %w", err)
	}

	if files := resolveExecFiles(cfg); len(files) > 0 {
		if err := m.AddEntryPoint(func(tc *task.Context) {
			executeFiles(tc, env, files)
		}); err != nil {
			return fmt.Errorf("xynqd: scheduling exec files: %w", err)
		}
	}

	runErr := make(chan error, 1)
	go func() { runErr <- m.Run() }()

	select {
	case <-ctx.Done():
		log.Info().Log("shutting down")
		m.Stop()
		return <-runErr
	case err := <-runErr:
		return err
	}
}
