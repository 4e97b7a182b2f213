package main

import "github.com/strangelove-ventures/fundlens/cmd"

func main() {
	cmd.Execute()
}
