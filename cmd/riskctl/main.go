package main

import (
	"os"

	"futures-risk-go/cmd/riskctl/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
