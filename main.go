package main

import "github.com/DavidCBradleyJr/matchmaker-bot/cmd"

func main() {
	cmd.Execute()
}
