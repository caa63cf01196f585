package main

import "github.com/bcnmy/relayer-node/cmd/relayer_node/cmd"

func main() {
	cmd.Execute()
}
