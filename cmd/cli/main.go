package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"efrog/internal/cli/command"
	cliconfig "efrog/internal/cli/config"
	httpclient "efrog/internal/cli/http"
	"efrog/internal/cli/repl"
	"efrog/internal/cli/state"
)

func main() {
	configPath := flag.String("config", "configs/cli.yaml", "path to CLI config file")
	baseURL := flag.String("base", "", "service base URL override")
	timeout := flag.Duration("timeout", 0, "request timeout override")
	token := flag.String("token", "", "access token override")
	statePath := flag.String("state", "", "token state file override")
	pretty := flag.Bool("pretty", true, "pretty-print JSON responses")
	flag.Parse()

	cfg, err := cliconfig.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	if *baseURL != "" {
		cfg.BaseURL = *baseURL
	}
	if *timeout > 0 {
		cfg.Timeout = *timeout
	}
	if *statePath != "" {
		cfg.TokenStatePath = *statePath
	}

	tokenState, err := state.Load(cfg.TokenStatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load token state failed: %v\n", err)
		os.Exit(1)
	}
	if *token != "" {
		tokenState.AccessToken = *token
		tokenState.UpdatedAt = time.Now()
		if err := state.Save(cfg.TokenStatePath, tokenState); err != nil {
			fmt.Fprintf(os.Stderr, "save token state failed: %v\n", err)
			os.Exit(1)
		}
	}

	client := httpclient.New(cfg.BaseURL, cfg.Timeout, func() string {
		return tokenState.AccessToken
	})

	prettyJSON := *pretty
	if cfg.PrettyJSON != nil {
		prettyJSON = *cfg.PrettyJSON
	}

	session := repl.New(client, command.Registry(), &tokenState, cfg.TokenStatePath, prettyJSON)
	session.Run(context.Background())
}
