package main

import (
	"os"

	"github.com/facilityhub/facility/pkg/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
