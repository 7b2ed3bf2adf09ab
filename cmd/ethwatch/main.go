package main

import "github.com/vietddude/ethwatch/internal/cli"

func main() {
	cli.Execute()
}
