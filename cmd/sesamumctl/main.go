package main

import (
	"errors"
	"fmt"
	"os"

	"sesamum.org/internal/cli"
	"sesamum.org/internal/config"
)

var version = "0.1.0"

func main() {
	config.LoadDotEnv()
	if err := cli.NewRootCmd(version).Execute(); err != nil {
		if !errors.Is(err, cli.ErrDenied) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
