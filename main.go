package main

import (
	"fmt"
	"os"

	"github.com/zeu5/maternal-rl/commands"
)

func main() {
	rootCommand := commands.GetRootCommand()
	if err := rootCommand.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
