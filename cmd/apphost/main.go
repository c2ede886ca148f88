package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sourceplane/apphost/internal/output"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		reportError(err)
		os.Exit(output.ExitCodeOf(err))
	}
}

func reportError(err error) {
	p := printer
	if p == nil {
		p = output.NewPrinter(output.PrinterOptions{ColorMode: output.ColorAuto, ConfigColors: true})
	}
	var cliErr *output.CLIError
	if errors.As(err, &cliErr) {
		p.FormatError(cliErr)
		return
	}
	p.Error("%v", err)
}
