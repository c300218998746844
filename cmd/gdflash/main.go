package main

import "github.com/OpenTraceLab/gdflash/cmd/gdflash/cmd"

func main() {
	cmd.Execute()
}
