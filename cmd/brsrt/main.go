package main

import (
	"embed"
	"fmt"
	"io/fs"
	"os"

	"github.com/zurustar/brsrt/pkg/app"
)

//go:embed demo
var embeddedDemo embed.FS

func main() {
	demo, err := fs.Sub(embeddedDemo, "demo")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	application := app.New(demo)
	if err := application.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
