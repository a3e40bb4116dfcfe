package main

import (
	"os"

	"restic-exporter/src/cli"
)

func main() {
	os.Exit(cli.Execute())
}
