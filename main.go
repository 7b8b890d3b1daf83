package main

import "github.com/jmehdipour/isp-billing/cmd"

func main() {
	cmd.Execute()
}
