package main

import "example.com/raceday/services/registration/cmd"

func main() {
	cmd.Execute()
}
