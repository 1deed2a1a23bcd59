package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/oriys/dispatchfabric/internal/dispatch"
	"github.com/oriys/dispatchfabric/internal/logging"
	"github.com/oriys/dispatchfabric/internal/metrics"
	"github.com/oriys/dispatchfabric/internal/observability"
	"github.com/spf13/cobra"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "dispatchctl",
		Short: "dispatchctl - cross-runtime command dispatch fabric",
		Long:  "Drives a nova dispatch fabric: register handlers, submit synthetic commands, run the worker loop, and inspect per-agent statistics.",
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a dispatch config YAML file (optional, flags/env override)")

	rootCmd.AddCommand(
		submitCmd(),
		statsCmd(),
		daemonCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() *dispatch.Config {
	var cfg *dispatch.Config
	if configFile != "" {
		c, err := dispatch.LoadFromYAMLFile(configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v, falling back to defaults\n", err)
			cfg = dispatch.DefaultConfig()
		} else {
			cfg = c
		}
	} else {
		cfg = dispatch.DefaultConfig()
	}
	dispatch.LoadFromEnv(cfg)
	return cfg
}

// registerDemoHandlers wires a handful of reference command types so a
// fresh dispatchctl run has something to submit against without an
// embedding script runtime. echo returns its msg field under "echo"; sum adds two
// numeric fields; fail always returns a handler error, for exercising
// the failed-outcome and audit paths.
func registerDemoHandlers(exec *dispatch.Executor) {
	exec.Register("echo", func(payload map[string]dispatch.Value) dispatch.HandlerResult {
		return dispatch.Success(map[string]dispatch.Value{"echo": payload["msg"]})
	})
	exec.Register("sum", func(payload map[string]dispatch.Value) dispatch.HandlerResult {
		a, _ := payload["a"].(int64)
		b, _ := payload["b"].(int64)
		return dispatch.Success(map[string]dispatch.Value{"result": a + b})
	})
	exec.Register("fail", func(payload map[string]dispatch.Value) dispatch.HandlerResult {
		return dispatch.Error("demo handler always fails")
	})
}

// maybeRegisterPersistHandler wires the "persist-result" command type
// against a Postgres-backed ResultStore when dsn is non-empty, giving
// dispatchctl a concrete handler that performs the "short host-side I/O"
// spec.md §4.6 allows. It's opt-in: dispatchctl still runs fine with no
// Postgres reachable, it just won't register this one command type.
func maybeRegisterPersistHandler(ctx context.Context, exec *dispatch.Executor, dsn string) (*dispatch.ResultStore, error) {
	if dsn == "" {
		return nil, nil
	}
	store, err := dispatch.NewResultStore(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("persist store: %w", err)
	}
	exec.Register("persist-result", dispatch.NewPersistResultHandler(store))
	return store, nil
}

func submitCmd() *cobra.Command {
	var (
		agentID  string
		cmdType  string
		msg      string
		a, b     int64
		waitSecs int
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a single synthetic command and print its outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			fabric, err := dispatch.NewFabric(cfg, dispatch.NativeRuntime{})
			if err != nil {
				return fmt.Errorf("build fabric: %w", err)
			}
			registerDemoHandlers(fabric.Executor)

			payload := map[string]dispatch.Value{"msg": msg, "a": a, "b": b}
			future, err := fabric.Facade.SubmitFuture(cmdType, payload, agentID)
			if err != nil {
				return fmt.Errorf("submit: %w", err)
			}

			deadline := time.After(time.Duration(waitSecs) * time.Second)
			for !future.Done() {
				fabric.Executor.RunOnce(time.Now().UnixNano(), 32)
				fabric.Bridge.Drain(32)
				select {
				case <-deadline:
					return fmt.Errorf("timed out waiting for outcome")
				default:
					time.Sleep(time.Millisecond)
				}
			}

			result := future.Wait()
			fmt.Printf("agent=%s type=%s success=%v result=%+v\n", agentID, cmdType, result["success"], result)
			return nil
		},
	}

	cmd.Flags().StringVar(&agentID, "agent", "demo-agent", "Agent identifier")
	cmd.Flags().StringVar(&cmdType, "type", "echo", "Command type (echo, sum, fail)")
	cmd.Flags().StringVar(&msg, "msg", "hello", "Payload message for the echo command")
	cmd.Flags().Int64Var(&a, "a", 2, "First operand for the sum command")
	cmd.Flags().Int64Var(&b, "b", 3, "Second operand for the sum command")
	cmd.Flags().IntVar(&waitSecs, "wait", 5, "Seconds to wait for an outcome before giving up")

	return cmd
}

func statsCmd() *cobra.Command {
	var (
		count   int
		agentID string
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Submit a burst of demo commands and print per-agent statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			fabric, err := dispatch.NewFabric(cfg, dispatch.NativeRuntime{})
			if err != nil {
				return fmt.Errorf("build fabric: %w", err)
			}
			registerDemoHandlers(fabric.Executor)

			types := []string{"echo", "sum", "fail", "missing"}
			for i := 0; i < count; i++ {
				t := types[i%len(types)]
				_ = fabric.Facade.Submit(t, map[string]dispatch.Value{
					"msg": "tick-" + strconv.Itoa(i),
					"a":   int64(i),
					"b":   int64(1),
				}, agentID, nil)
			}

			fabric.Executor.RunOnce(time.Now().UnixNano(), count+1)
			fabric.Bridge.Drain(count + 1)

			printStats(fabric.Executor.Snapshot())
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 20, "Number of synthetic commands to submit")
	cmd.Flags().StringVar(&agentID, "agent", "demo-agent", "Agent identifier to submit under")

	return cmd
}

func printStats(snap dispatch.Snapshot) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "AGENT\tSUBMITTED\tEXECUTED\tFAILED\tRATE_LIMITED\tUNHANDLED")
	for agent, c := range snap.Agents {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\n", agent, c.Submitted, c.Executed, c.Failed, c.RateLimited, c.Unhandled)
	}
	w.Flush()
}

func daemonCmd() *cobra.Command {
	var (
		logLevel   string
		tickMillis int
		httpAddr   string
		persistDSN string
	)

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the dispatch fabric as a long-lived worker loop",
		Long:  "Runs registered handlers against submitted commands on a fixed tick, draining callbacks and setting Prometheus gauges in the default registry until a shutdown signal arrives. No HTTP endpoint serves the registry.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()

			if cmd.Flags().Changed("audit") {
				v, _ := cmd.Flags().GetBool("audit")
				cfg.AuditLoggingEnabled = v
			}

			logging.SetLevelFromString(logLevel)
			logging.InitStructured("text", logLevel)

			if err := observability.Init(context.Background(), observability.Config{
				Enabled:     false,
				ServiceName: "dispatchctl",
			}); err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			defer observability.Shutdown(context.Background())

			metrics.InitDispatchMetrics("nova")

			fabric, err := dispatch.NewFabric(cfg, dispatch.NativeRuntime{})
			if err != nil {
				return fmt.Errorf("build fabric: %w", err)
			}
			registerDemoHandlers(fabric.Executor)

			persistStore, err := maybeRegisterPersistHandler(context.Background(), fabric.Executor, persistDSN)
			if err != nil {
				return err
			}
			if persistStore != nil {
				defer persistStore.Close()
			}

			logging.Op().Info("dispatchctl daemon started",
				"command_queue_capacity", cfg.CommandQueueCapacity,
				"callback_queue_capacity", cfg.CallbackQueueCapacity,
				"rate_limit_per_agent", cfg.RateLimitPerAgent)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			tick := time.NewTicker(time.Duration(tickMillis) * time.Millisecond)
			defer tick.Stop()

			statusTick := time.NewTicker(10 * time.Second)
			defer statusTick.Stop()

			for {
				select {
				case <-sigCh:
					logging.Op().Info("shutdown signal received")
					fabric.Bridge.Shutdown()
					return nil
				case <-tick.C:
					fabric.Executor.RunOnce(time.Now().UnixNano(), 64)
					fabric.Bridge.Drain(64)
					snap := fabric.Executor.Snapshot()
					agents := make(map[string]metrics.DispatchAgentSnapshot, len(snap.Agents))
					for agent, c := range snap.Agents {
						agents[agent] = metrics.DispatchAgentSnapshot{
							Submitted:   c.Submitted,
							Executed:    c.Executed,
							Failed:      c.Failed,
							RateLimited: c.RateLimited,
							Unhandled:   c.Unhandled,
						}
					}
					metrics.RecordDispatchSnapshot(agents, fabric.Queue.ApproximateSize(), fabric.Router.ApproximateSize())
				case <-statusTick.C:
					logging.Op().Debug("dispatch fabric status", "pending_callbacks", fabric.Bridge.PendingCount())
				}
			}
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().IntVar(&tickMillis, "tick-ms", 50, "Milliseconds between dispatch ticks")
	cmd.Flags().StringVar(&httpAddr, "http", "", "Reserved for a future metrics HTTP endpoint")
	cmd.Flags().Bool("audit", false, "Enable audit logging for dispatched commands")
	cmd.Flags().StringVar(&persistDSN, "persist-dsn", os.Getenv("NOVA_DISPATCH_PERSIST_DSN"), "Postgres DSN for the optional persist-result command type (unset disables it)")

	return cmd
}
