package main

import "github.com/veridia/estca/cmd/estca-users/cmd"

func main() {
	cmd.Execute()
}
