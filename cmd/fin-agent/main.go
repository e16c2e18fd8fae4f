// Command fin-agent is an interactive financial assistant for Chinese
// A-share markets. It answers questions by calling market data tools,
// keeps a simulated portfolio, and remembers investor preferences.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/urfave/cli/v3"

	finagent "github.com/sudheer1135/fin-agent"
	"github.com/sudheer1135/fin-agent/agent"
	"github.com/sudheer1135/fin-agent/config"
	"github.com/sudheer1135/fin-agent/logging"
)

const version = "0.3.0"

// dimSink renders hidden reasoning in dim text so it reads as an aside.
type dimSink struct{}

func (dimSink) Write(text string) { fmt.Fprint(os.Stderr, "\x1b[2m"+text+"\x1b[0m") }
func (dimSink) Flush()            { fmt.Fprintln(os.Stderr) }

func main() {
	cmd := &cli.Command{
		Name:    "fin-agent",
		Usage:   "financial assistant for Chinese A-share markets",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "provider", Usage: "model provider: deepseek, openai, or anthropic", Sources: cli.EnvVars("FIN_AGENT_PROVIDER")},
			&cli.StringFlag{Name: "model", Usage: "model name", Sources: cli.EnvVars("FIN_AGENT_MODEL")},
			&cli.StringFlag{Name: "api-key", Usage: "provider API key", Sources: cli.EnvVars("DEEPSEEK_API_KEY")},
			&cli.StringFlag{Name: "base-url", Usage: "provider API base URL", Sources: cli.EnvVars("DEEPSEEK_BASE_URL")},
			&cli.StringFlag{Name: "tushare-token", Usage: "Tushare API token", Sources: cli.EnvVars("TUSHARE_TOKEN")},
			&cli.BoolFlag{Name: "no-stream", Usage: "wait for complete answers instead of streaming"},
			&cli.BoolFlag{Name: "show-thinking", Usage: "display the model's hidden reasoning"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"V"}, Usage: "enable debug logging"},
		},
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "manage saved settings",
				Commands: []*cli.Command{
					{
						Name:  "set",
						Usage: "save the current flags as defaults",
						Action: func(ctx context.Context, cmd *cli.Command) error {
							cfg, err := loadConfig(cmd)
							if err != nil {
								return err
							}

							if err := cfg.Save(); err != nil {
								return err
							}

							fmt.Println("settings saved")

							return nil
						},
					},
					{
						Name:  "clear",
						Usage: "remove saved settings",
						Action: func(ctx context.Context, cmd *cli.Command) error {
							if err := config.Clear(); err != nil {
								return err
							}

							fmt.Println("settings cleared")

							return nil
						},
					},
				},
			},
			{
				Name:  "reset",
				Usage: "clear the conversation history",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}

					a, err := newAgent(cmd, cfg)
					if err != nil {
						return err
					}

					if err := a.Reset(); err != nil {
						return err
					}

					fmt.Println("conversation history cleared")

					return nil
				},
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if v := cmd.String("provider"); v != "" {
		cfg.Provider = v
	}

	if v := cmd.String("model"); v != "" {
		cfg.Model = v
	}

	if v := cmd.String("api-key"); v != "" {
		cfg.APIKey = v
	}

	if v := cmd.String("base-url"); v != "" {
		cfg.BaseURL = v
	}

	if v := cmd.String("tushare-token"); v != "" {
		cfg.TushareToken = v
	}

	if cmd.Bool("no-stream") {
		cfg.Stream = false
	}

	if cmd.Bool("show-thinking") {
		cfg.ShowThinking = true
	}

	return cfg, nil
}

func newAgent(cmd *cli.Command, cfg *config.Config) (*finagent.Agent, error) {
	level := slog.LevelWarn
	if cmd.Bool("verbose") {
		level = slog.LevelDebug
	}

	return finagent.New(cfg, func(o *finagent.Options) {
		o.Logger = logging.NewConsoleLogger(os.Stderr, level)
		o.VisibleSink = &agent.WriterSink{W: os.Stdout}
		o.ReasoningSink = dimSink{}
	})
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	a, err := newAgent(cmd, cfg)
	if err != nil {
		return err
	}

	// One-shot mode when a question is passed as arguments.
	if cmd.Args().Len() > 0 {
		return ask(ctx, a, strings.Join(cmd.Args().Slice(), " "))
	}

	fmt.Printf("fin-agent %s, model %s. Type 'exit' to quit.\n", version, cfg.Model)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")

		if !scanner.Scan() {
			fmt.Println()

			return scanner.Err()
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if input == "exit" || input == "quit" {
			return nil
		}

		if err := ask(ctx, a, input); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	}
}

// ask runs one turn. Ctrl-C interrupts the turn without quitting the
// program; whatever streamed so far stays in the conversation. The answer
// reaches the terminal through the visible sink in both streaming and
// non-streaming mode, so nothing is printed here.
func ask(ctx context.Context, a *finagent.Agent, input string) error {
	turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	_, err := a.Run(turnCtx, input)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}
