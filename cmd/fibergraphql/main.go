package main

import (
	"os"

	"github.com/theapemachine/fibergraphql/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
