package main

import "ltold/cmd"

func main() {
	cmd.Execute()
}
