package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"git.home.luguber.info/inful/stylebuild/cmd/stylebuild/commands"
	"git.home.luguber.info/inful/stylebuild/internal/foundation/errors"
	"git.home.luguber.info/inful/stylebuild/internal/version"
)

func main() {
	// A missing .env is fine; values only prefill env-backed flags.
	_ = godotenv.Load()

	cli := &commands.CLI{}
	kong.Parse(cli,
		kong.Name(version.Name),
		kong.Description("Compile stylesheets from a source directory into a target directory."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx, os.Stdout)
	stop()

	errors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
}
