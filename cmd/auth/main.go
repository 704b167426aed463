package main

import "github.com/aussiebroadwan/farmportal/cmd/auth/cmd"

func main() {
	cmd.Execute()
}
