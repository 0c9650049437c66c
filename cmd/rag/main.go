// Package main is the entry point for the quizmind RAG service.
//
// The service ingests uploaded study documents into a vector store and
// retrieves the chunks most relevant to a topic for question generation.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/quizmind/cmd/rag/app"
)

func main() {
	app.NewApp().Run()
}
