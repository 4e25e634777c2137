package main

import "github.com/OpenTraceLab/seracc/cmd/seracc/cmd"

func main() {
	cmd.Execute()
}
