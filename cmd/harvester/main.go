// Package main wires together the harvester binary.
package main

import "github.com/modelmatch/review-harvester/cmd"

func main() {
	cmd.Execute()
}
