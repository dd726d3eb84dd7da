package main

import "github.com/tanq16/pdl/cmd"

func main() {
	cmd.Execute()
}
