// Package main is the entry point for the pdfrag service.
//
// pdfrag ingests PDF documents into a vector index and answers questions
// about them over HTTP or from the command line.
package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/kart-io/pdfrag/cmd/pdfrag/app"
)

func main() {
	app.NewApp().Run()
}
