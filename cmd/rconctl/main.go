package main

import "rconhub/cmd/rconctl/command"

func main() {
	command.Execute()
}
