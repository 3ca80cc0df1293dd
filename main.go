package main

import "github.com/wormhole-demo/bridge/cmd"

func main() {
	cmd.Execute()
}
