package main

import "github.com/signalpathlab/cct/cmd/cct/cmd"

func main() {
	cmd.Execute()
}
