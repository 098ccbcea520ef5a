package main

import "github.com/dgallion1/statchunk/internal/cli"

func main() {
	cli.Execute()
}
