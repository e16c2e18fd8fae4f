// Package finagent wires the assistant together: provider transport,
// market data tools, simulated portfolio, investor profile, and the
// conversation loop, with history persisted between sessions. Most
// applications create an Agent via New and call Run per user input.
package finagent

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sudheer1135/fin-agent/agent"
	"github.com/sudheer1135/fin-agent/config"
	"github.com/sudheer1135/fin-agent/conversation"
	"github.com/sudheer1135/fin-agent/fintools"
	"github.com/sudheer1135/fin-agent/logging"
	"github.com/sudheer1135/fin-agent/market"
	"github.com/sudheer1135/fin-agent/model"
	"github.com/sudheer1135/fin-agent/model/anthropic"
	"github.com/sudheer1135/fin-agent/model/openai"
	"github.com/sudheer1135/fin-agent/portfolio"
	"github.com/sudheer1135/fin-agent/tool"
)

const basePrompt = "You are a financial assistant for Chinese A-share markets. " +
	"You can help users analyze stocks, check prices, manage a simulated portfolio, and provide recommendations. " +
	"CRITICAL RULE: All market data (prices, trends, fundamentals) MUST be obtained via the provided tools. " +
	"DO NOT use your internal knowledge for any market data, as it may be outdated. " +
	"Always fetch the latest data using the tools before answering. " +
	"First step: Check the current time using 'get_current_time' to establish the temporal context if the user asks about time-sensitive data (e.g. 'today', 'recent'). " +
	"For 'latest' or 'current' price queries, use 'get_realtime_price'. " +
	"For trends and analysis, use 'get_daily_price' to get historical context. " +
	"For valuation (PE, PB) or market cap, use 'get_daily_basic'. " +
	"For financial performance (Revenue, Profit), use 'get_income_statement'. " +
	"When analyzing, EXPLICITLY mention the date of the data you are using. " +
	"Calculate percentage changes and describe the trend (e.g., upward, downward, volatile) based on the data. " +
	"When the user shares preferences worth remembering, record them with 'update_profile'. " +
	"When you have enough information, answer the user's question directly."

// Options configures an Agent beyond what the config file carries.
type Options struct {
	// Logger receives diagnostics from all components.
	Logger logging.Logger
	// VisibleSink receives answer text as it streams.
	VisibleSink agent.Sink
	// ReasoningSink receives hidden reasoning text as it streams.
	ReasoningSink agent.Sink
	// StateDir overrides where history and portfolio files live. Empty uses
	// the per-user config directory.
	StateDir string
}

// Agent is the assembled assistant.
type Agent struct {
	cfg     *config.Config
	profile *config.Profile
	loop    *agent.Loop
	conv    *conversation.Conversation
	store   *conversation.Store
	logger  logging.Logger
}

// New builds an Agent from cfg, loading the saved profile, portfolio, and
// conversation history.
func New(cfg *config.Config, optFns ...func(o *Options)) (*Agent, error) {
	opts := Options{
		Logger:        logging.NewNoOpLogger(),
		VisibleSink:   agent.NopSink{},
		ReasoningSink: agent.NopSink{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	stateDir := opts.StateDir
	if stateDir == "" {
		dir, err := config.Dir()
		if err != nil {
			return nil, err
		}

		stateDir = dir
	}

	profile, err := config.LoadProfile()
	if err != nil {
		return nil, err
	}

	holdings, err := portfolio.NewManager(filepath.Join(stateDir, "portfolio.json"))
	if err != nil {
		return nil, err
	}

	a := &Agent{
		cfg:     cfg,
		profile: profile,
		store:   conversation.NewStore(filepath.Join(stateDir, "history.json")),
		logger:  opts.Logger,
	}

	a.conv, err = a.store.Load(a.systemPrompt())
	if err != nil {
		return nil, err
	}

	quotes := market.NewClient(cfg.TushareToken, func(o *market.Options) {
		o.Logger = opts.Logger
	})

	registry := tool.NewRegistry(fintools.TimeTool())
	for _, t := range fintools.MarketTools(quotes) {
		registry.Register(t)
	}

	for _, t := range fintools.PortfolioTools(holdings, quotes) {
		registry.Register(t)
	}

	registry.Register(fintools.ProfileTool(a.updateProfile))
	registry.Register(fintools.ConfigTool(a.applyConfig))

	transport, err := buildTransport(cfg)
	if err != nil {
		return nil, err
	}

	reasoningSink := opts.ReasoningSink
	if !cfg.ShowThinking {
		reasoningSink = agent.NopSink{}
	}

	a.loop = agent.New(transport, registry, a.conv, func(o *agent.Options) {
		o.Stream = cfg.Stream
		o.SystemPrompt = a.systemPrompt
		o.ReconfigureTool = fintools.ReconfigureToolName
		o.TransportFactory = func() (model.Transport, error) { return buildTransport(cfg) }
		o.VisibleSink = opts.VisibleSink
		o.ReasoningSink = reasoningSink
		o.Logger = opts.Logger
	})

	return a, nil
}

func buildTransport(cfg *config.Config) (model.Transport, error) {
	switch strings.ToLower(cfg.Provider) {
	case "deepseek", "":
		return openai.NewTransport(func(o *openai.Options) {
			o.Provider = "deepseek"
			o.Model = cfg.Model
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
		}), nil
	case "openai":
		return openai.NewTransport(func(o *openai.Options) {
			o.Model = cfg.Model
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
		}), nil
	case "anthropic":
		return anthropic.NewTransport(func(o *anthropic.Options) {
			o.Model = cfg.Model
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
		}), nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
}

func (a *Agent) systemPrompt() string {
	prompt := basePrompt
	if summary := a.profile.Summary(); summary != "" {
		prompt += "\n\n" + summary
	}

	return prompt
}

func (a *Agent) updateProfile(update config.Profile) error {
	a.profile.Merge(update)
	if err := a.profile.Save(); err != nil {
		return err
	}

	a.conv.RefreshSystemPrompt(a.systemPrompt())

	return nil
}

func (a *Agent) applyConfig(update fintools.ConfigUpdate) error {
	if update.Provider != "" {
		a.cfg.Provider = update.Provider
	}

	if update.Model != "" {
		a.cfg.Model = update.Model
	}

	if update.APIKey != "" {
		a.cfg.APIKey = update.APIKey
	}

	if update.BaseURL != "" {
		a.cfg.BaseURL = update.BaseURL
	}

	return a.cfg.Save()
}

// Run processes one user input and returns the assistant's answer. The
// conversation history is saved afterwards, including after interruption.
func (a *Agent) Run(ctx context.Context, input string) (string, error) {
	answer, err := a.loop.Run(ctx, input)
	if err != nil {
		return "", err
	}

	if saveErr := a.store.Save(a.conv); saveErr != nil {
		a.logger.Warn("saving history failed", "error", saveErr)
	}

	return answer, nil
}

// Reset clears the conversation history in memory and on disk.
func (a *Agent) Reset() error {
	a.conv.Reset(a.systemPrompt())

	return a.store.Clear()
}
