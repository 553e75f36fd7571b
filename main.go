package main

import (
	"gpxvault/cmd"
)

func main() {
	cmd.Execute()
}
