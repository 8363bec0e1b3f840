package main

import (
	"os"

	"github.com/gavram/ckan-search/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
