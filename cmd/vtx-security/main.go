package main

import (
	"os"

	"github.com/Vtxdeo/vtx-security-cli/cmd/vtx-security/commands"
)

func main() {
	os.Exit(commands.Execute())
}
