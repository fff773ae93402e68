package main

import "github.com/nextdhcp/ddhcp/dhcpmain"

func main() {
	dhcpmain.Run()
}
