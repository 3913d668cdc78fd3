package main

import "github.com/fentonlabs/daxc/cmd"

func main() {
	cmd.Execute()
}
