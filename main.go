package main

import "github.com/jjenkins/acervo/cmd"

func main() {
	cmd.Execute()
}
