package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/tflic/internal/client/cli"
	"github.com/dmitrijs2005/tflic/internal/client/config"
	"github.com/dmitrijs2005/tflic/internal/flagx"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := cli.NewApp(cfg)

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := app.Run(ctx, flagx.Positional(os.Args[1:], config.ValueFlags)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

}
