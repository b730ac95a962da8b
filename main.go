package main

import "github.com/sw33tLie/creatorlive/cmd"

func main() {
	cmd.Execute()
}
