package main

import "github.com/oshokin/ocio-updater/cmd/ocio-updater/cmd"

func main() {
	cmd.Execute()
}
