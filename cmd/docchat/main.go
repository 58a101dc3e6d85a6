// Command docchat serves question answering over uploaded PDF documents.
package main

import (
	"os"
	"time"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		root.PrintErrln("Error:", err)
		os.Exit(exitCode(err))
	}
}

func msDuration(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }
