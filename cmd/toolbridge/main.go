package main

import (
	"os"

	"github.com/tkingovr/toolbridge/cmd/toolbridge/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
