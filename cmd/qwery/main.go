package main

import "qwery/internal/cli"

func main() {
	cli.Execute()
}
