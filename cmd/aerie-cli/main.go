package main

import (
	"context"
	"os"

	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/cli/command"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/infra/shutdown"
)

func main() {
	ctx, cancel := shutdown.WithSignals(context.Background())
	code := command.Execute(ctx, command.App(), os.Args)
	cancel()
	os.Exit(code)
}
