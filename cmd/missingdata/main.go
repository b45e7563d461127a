package main

import (
	"os"

	"github.com/Jac-Zac/Stat-Missing-Data-Project/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
