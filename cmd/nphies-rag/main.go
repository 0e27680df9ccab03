// Package main is the entry point for the NPHIES assistant HTTP service.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/nphies-rag/cmd/nphies-rag/app"
)

func main() {
	app.NewApp().Run()
}
