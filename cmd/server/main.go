package main

import "userbench/internal/cli"

func main() {
	cli.Execute()
}
