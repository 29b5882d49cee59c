// Package main is the CLI command itself.
package main

import (
	"log"
	"os"

	rkdcli "go.viam.com/rkd/cli"
)

func main() {
	app := rkdcli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
