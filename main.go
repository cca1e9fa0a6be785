package main

import "bookdex/cmd"

// execute is a variable so tests can swap out the real CLI entrypoint.
var execute = cmd.Execute

func main() {
	execute()
}
