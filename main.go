package main

import "photo-library-backend/cmd"

func main() {
	cmd.Run()
}
