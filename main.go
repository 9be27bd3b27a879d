package main

import "github.com/Emojigit/FilterInappropriateCSD/cmd"

func main() {
	cmd.Execute()
}
