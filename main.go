package main

import "trendwatch/cmd/handlers"

func main() {
	handlers.Execute()
}
