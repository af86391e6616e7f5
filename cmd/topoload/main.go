// Command topoload bulk-loads network topology into the inventory system.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/topoload/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(cli.GetExitCode(err))
}
