package main

import "github.com/gestionnegocio/console/cmd/negocio/commands"

func main() {
	commands.Execute()
}
