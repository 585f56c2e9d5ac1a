package main

import (
	"auth_service/config"
	"auth_service/internal/app"
	"auth_service/internal/domain"
	"context"
	"fmt"
	"os"
)

func main() {
	logger := app.SetupLogger("warn", false)
	logger.SetOutput(os.Stderr)

	open := func(ctx context.Context) (domain.AuthStateProvider, func(), error) {
		cfg := config.LoadConfig(logger)
		deps, err := app.Build(ctx, cfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("error initializing backend: %w", err)
		}
		return deps.NewProvider(), deps.Close, nil
	}

	if err := newRootCmd(open).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
