package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/fekuna/omnipos-ledger-service/internal/cli"
)

func main() {
	_ = godotenv.Load()

	if err := cli.NewRootCommand(nil).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
