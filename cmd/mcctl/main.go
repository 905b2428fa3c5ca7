package main

import "github.com/mcoot/missioncommand/internal/cli"

func main() {
	cli.Execute()
}
