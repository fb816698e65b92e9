package main

import "github.com/jabva-1990/agentic-healer/cmd"

func main() {
	cmd.Execute()
}
