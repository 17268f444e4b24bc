package main

import "blinddate-backend/cmd"

func main() {
	cmd.Run()
}
