package main

import "github.com/fleetsim/gridnet/cmd"

func main() {
	cmd.Execute()
}
