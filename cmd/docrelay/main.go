package main

import "github.com/docrelay/docrelay/internal/cli"

func main() {
	cli.Execute()
}
