package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/albarami/wellbeing/config"
	"github.com/albarami/wellbeing/internal/council"
	"github.com/albarami/wellbeing/internal/council/telemetry"
	"github.com/albarami/wellbeing/internal/provider"
	"github.com/albarami/wellbeing/internal/tools"
)

func runCMD() *cobra.Command {
	var cfgPath string
	var language string
	var reportPath string

	var run = &cobra.Command{
		Use:   "run [topic]",
		Short: "Run one council debate and print it to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			topic := args[0]

			prov, err := provider.New(cfg.LLM.Provider, cfg.ActiveProvider())
			if err != nil {
				return err
			}
			reg := council.NewRegistry(cfg.Council.ToolTimeout, nil)
			tools.RegisterAll(reg, cfg.Tools, nil)
			roster, err := config.LoadRoster(cfg.Council.File)
			if err != nil {
				return err
			}
			pipeline, err := council.NewPipeline(prov, reg, roster, cfg.Council, telemetry.New(), nil)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			onProgress := func(done, total int, res council.TaskResult) {
				log.Printf("task %d/%d %s: %s (%s)", done, total, res.TaskName, res.Status, res.Duration.Round(time.Second))
			}
			result, err := pipeline.Run(ctx, topic, language, stdoutSink{}, onProgress)
			if err != nil {
				return err
			}

			if reportPath != "" {
				if err := os.WriteFile(reportPath, []byte(result.Report), 0o644); err != nil {
					return fmt.Errorf("writing report: %w", err)
				}
				log.Printf("report written to %s", reportPath)
			} else {
				fmt.Println()
				fmt.Println(result.Report)
			}
			return nil
		},
	}
	run.Flags().StringVar(&language, "language", "en", "debate language")
	run.Flags().StringVar(&reportPath, "report", "", "write the final report to this file instead of stdout")
	run.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return run
}

// stdoutSink streams debate text to the terminal. Heartbeats and events
// go to stderr so the transcript on stdout stays clean.
type stdoutSink struct{}

func (stdoutSink) Chunk(text string) { fmt.Print(text) }
func (stdoutSink) Heartbeat()        { fmt.Fprint(os.Stderr, ".") }
func (stdoutSink) Event(name string, payload any) {
	fmt.Fprintf(os.Stderr, "\n[%s] %v\n", name, payload)
}
