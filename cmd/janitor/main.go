package main

import (
	"context"
	"fmt"
	"os"

	"lambda-janitor/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand(nil)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}
