// Command lkeap drives the LKEAP chat and rerank adapters from the command
// line.
//
// Usage:
//
//	lkeap [-config FILE] [-metrics] <command> [flags] [args]
//
// Commands:
//
//	chat     -model M [-stream] [-system S] [-temperature T] PROMPT
//	rerank   -model M -query Q [-threshold T] [-top-n N] DOC...
//	validate -kind chat|rerank -model M
//	tokens   -model M TEXT
//
// Credentials and endpoints come from the config file and LKEAP_*
// environment variables. A .env file in the working directory is loaded
// first when present.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/lkeap-plugin/lkeap/pkg/config"
	"github.com/lkeap-plugin/lkeap/pkg/debug"
	"github.com/lkeap-plugin/lkeap/pkg/model"
	"github.com/lkeap-plugin/lkeap/pkg/observability"
	"github.com/lkeap-plugin/lkeap/pkg/provider"
	"github.com/lkeap-plugin/lkeap/pkg/provider/lkeap"
	"github.com/lkeap-plugin/lkeap/pkg/provider/lkeaprerank"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	// A missing .env file is the common case.
	_ = godotenv.Load()

	global := flag.NewFlagSet("lkeap", flag.ContinueOnError)
	configPath := global.String("config", "", "path to config file")
	dumpMetrics := global.Bool("metrics", false, "print collected metrics to stderr on exit")
	if err := global.Parse(args); err != nil {
		return err
	}

	rest := global.Args()
	if len(rest) == 0 {
		return errors.New("missing command (chat, rerank, validate, tokens)")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	debug.Init(cfg.Logging.Debug, cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *dumpMetrics {
		defer observability.WriteText(os.Stderr)
	}

	cmd, cmdArgs := rest[0], rest[1:]
	switch cmd {
	case "chat":
		return runChat(ctx, cfg, cmdArgs, out)
	case "rerank":
		return runRerank(ctx, cfg, cmdArgs, out)
	case "validate":
		return runValidate(ctx, cfg, cmdArgs, out)
	case "tokens":
		return runTokens(ctx, cfg, cmdArgs, out)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runChat(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	modelName := fs.String("model", cfg.Chat.DefaultModel, "model name")
	stream := fs.Bool("stream", false, "stream the response")
	system := fs.String("system", "", "system prompt")
	temperature := fs.Float64("temperature", lkeap.DefaultTemperature, "sampling temperature")
	maxTokens := fs.Int("max-tokens", lkeap.DefaultMaxTokens, "maximum completion tokens")
	if err := fs.Parse(args); err != nil {
		return err
	}
	prompt := strings.Join(fs.Args(), " ")
	if prompt == "" {
		return errors.New("chat: missing prompt")
	}

	llm, err := lkeap.New(cfg.ChatAdapterConfig())
	if err != nil {
		return err
	}

	req := &model.LLMRequest{
		Model:          *modelName,
		Credentials:    cfg.ModelCredentials(),
		PromptMessages: buildMessages(*system, prompt),
		Parameters: map[string]any{
			"temperature": *temperature,
			"max_tokens":  *maxTokens,
		},
		Stream: *stream,
	}

	res, s, err := provider.Invoke(ctx, llm, req)
	if err != nil {
		return err
	}
	if s != nil {
		res, err = provider.Collect(s, func(chunk model.LLMResultChunk) {
			fmt.Fprint(out, chunk.Delta.Message.Content)
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(out)
	} else {
		fmt.Fprintln(out, res.Message.Content)
	}

	for _, tc := range res.Message.ToolCalls {
		fmt.Fprintf(out, "tool call %s: %s(%s)\n", tc.ID, tc.Function.Name, tc.Function.Arguments)
	}
	return printUsage(out, res.Usage)
}

func runRerank(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("rerank", flag.ContinueOnError)
	modelName := fs.String("model", lkeaprerank.SupportedModel, "model name")
	query := fs.String("query", "", "search query")
	threshold := fs.Float64("threshold", -1, "minimum score to keep (negative disables)")
	topN := fs.Int("top-n", 0, "requested number of results (0 disables)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *query == "" {
		return errors.New("rerank: missing -query")
	}

	rm, err := lkeaprerank.New(cfg.RerankAdapterConfig())
	if err != nil {
		return err
	}

	req := &model.RerankRequest{
		Model:       *modelName,
		Credentials: cfg.ModelCredentials(),
		Query:       *query,
		Docs:        fs.Args(),
	}
	if *threshold >= 0 {
		req.ScoreThreshold = threshold
	}
	if *topN > 0 {
		req.TopN = topN
	}

	res, err := rm.Invoke(ctx, req)
	if err != nil {
		return err
	}
	for _, doc := range res.Docs {
		fmt.Fprintf(out, "%d\t%.4f\t%s\n", doc.Index, doc.Score, doc.Text)
	}
	return nil
}

func runValidate(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	kind := fs.String("kind", "chat", "adapter to validate (chat or rerank)")
	modelName := fs.String("model", "", "model name (defaults per kind)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	creds := cfg.ModelCredentials()
	switch *kind {
	case "chat":
		if *modelName == "" {
			*modelName = cfg.Chat.DefaultModel
		}
		llm, err := lkeap.New(cfg.ChatAdapterConfig())
		if err != nil {
			return err
		}
		if err := llm.ValidateCredentials(ctx, *modelName, creds); err != nil {
			return err
		}
	case "rerank":
		if *modelName == "" {
			*modelName = lkeaprerank.SupportedModel
		}
		rm, err := lkeaprerank.New(cfg.RerankAdapterConfig())
		if err != nil {
			return err
		}
		if err := rm.ValidateCredentials(ctx, *modelName, creds); err != nil {
			return err
		}
	default:
		return fmt.Errorf("validate: unknown kind %q", *kind)
	}

	fmt.Fprintf(out, "credentials valid for %s model %s\n", *kind, *modelName)
	return nil
}

func runTokens(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("tokens", flag.ContinueOnError)
	modelName := fs.String("model", cfg.Chat.DefaultModel, "model name")
	system := fs.String("system", "", "system prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}

	llm, err := lkeap.New(cfg.ChatAdapterConfig())
	if err != nil {
		return err
	}
	n, err := llm.CountTokens(ctx, *modelName, cfg.ModelCredentials(), buildMessages(*system, strings.Join(fs.Args(), " ")), nil)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, n)
	return nil
}

// buildMessages assembles an optional system prompt and a user prompt.
func buildMessages(system, prompt string) []model.PromptMessage {
	var msgs []model.PromptMessage
	if system != "" {
		msgs = append(msgs, &model.SystemPromptMessage{Content: system})
	}
	if prompt != "" {
		msgs = append(msgs, &model.UserPromptMessage{Content: prompt})
	}
	return msgs
}

func printUsage(out io.Writer, u model.Usage) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "usage: %s\n", data)
	return err
}
