package main

import "levelup/cmd/lvl/root"

func main() {
	root.Execute()
}
