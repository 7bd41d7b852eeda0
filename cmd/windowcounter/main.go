package main

import "github.com/Kalantar81/window-counter/server"

func main() {
	server.Main()
}
