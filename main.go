package main

import "github.com/plandeck/nudge/cmd"

func main() {
	cmd.Execute()
}
