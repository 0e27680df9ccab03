// Package main is the entry point for the NPHIES command line client.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/nphies-rag/cmd/nphies-ask/app"
)

func main() {
	app.NewApp().Run()
}
