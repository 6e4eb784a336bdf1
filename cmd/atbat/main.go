/*
Package main is the entry point for the atbat command-line tool.

atbat loads the same scenario table and classifier as the API server and
answers one question at a time from the terminal, which is handy for
checking a new model artifact before it is deployed.

Usage:

	atbat [command]

Available Commands:

	scenario    Describe one scenario
	predict     Score a swing against one scenario
	schema      Print the ordered feature list
	version     Show version information

Examples:

	atbat scenario 0
	atbat predict 0 --speed 104 --angle 25 --bearing center
	atbat schema --model data/model.json.zst
*/
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
