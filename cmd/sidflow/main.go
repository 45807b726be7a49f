package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root := newRootCommand()
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return 0
	}
	// A cancelled context means the user interrupted; no message needed.
	if !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "sidflow: %v\n", err)
	}
	return 1
}
