package main

import "github.com/Tiliavir/watch-drift/cmd"

func main() {
	cmd.Execute()
}
