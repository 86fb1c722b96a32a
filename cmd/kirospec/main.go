package main

import (
	"github.com/kirodev/speckit/cmd"
)

func main() {
	cmd.Main()
}
