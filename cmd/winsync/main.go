package main

import (
	"os"

	"winsync/cmd/winsync/cmds"
)

func main() {
	if err := cmds.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
