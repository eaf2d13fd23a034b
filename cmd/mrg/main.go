package main

import (
	"fmt"
	"os"
)

func main() {
	app := newApp()
	if err := app.rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
