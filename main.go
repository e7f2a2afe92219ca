// Package main is the entry point for the xyn ledger node.
package main

import "xyron.node/xyn/cmd/xyn"

func main() {
	xyn.Execute()
}
