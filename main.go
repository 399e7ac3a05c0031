package main

import (
	"os"

	"golang-quant/cmd"
)

func main() {
	// cobra has already printed the error
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
