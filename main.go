package main

import "github.com/tomashavel/faceforge/cmd"

func main() {
	cmd.Execute()
}
