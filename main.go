package main

import "github.com/vibast-solutions/ms-go-novapay/cmd"

func main() {
	cmd.Execute()
}
