package main

import "github.com/jmcleod/credvault/cmd/credvault/cmd"

func main() {
	cmd.Execute()
}
