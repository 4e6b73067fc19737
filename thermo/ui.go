package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

var (
	colorKey     = color.New(color.FgHiCyan)
	colorValue   = color.New(color.FgHiYellow)
	colorSuccess = color.New(color.FgHiGreen, color.Bold)
	colorError   = color.New(color.FgHiRed, color.Bold)
	colorMuted   = color.New(color.FgHiBlack)
)

// field prints an aligned key/value line.
func field(key string, format string, args ...interface{}) {
	colorKey.Printf("  %-14s", key)
	colorValue.Printf(format, args...)
	fmt.Println()
}

func success(format string, args ...interface{}) {
	colorSuccess.Print("✔ ")
	fmt.Printf(format+"\n", args...)
}

func fail(err error) {
	colorError.Fprint(os.Stderr, "✖ ")
	fmt.Fprintln(os.Stderr, err.Error())
}
