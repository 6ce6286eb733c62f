package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ftahirops/xraid/cmd"
	"github.com/ftahirops/xraid/engine"
)

func main() {
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, engine.ErrAborted) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
