package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/timecard/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "timecard: %v\n", err)
		os.Exit(1)
	}
}
