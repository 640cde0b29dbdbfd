// Package ui prints colored progress output for the CLI.
package ui

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

const headerWidth = 60

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	stepColor    = color.New(color.FgBlue)
	successColor = color.New(color.FgGreen)
	infoColor    = color.New(color.FgWhite)
	warningColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
)

// Header prints a banner with the given title.
func Header(title string) {
	line := strings.Repeat("=", headerWidth)
	headerColor.Println(line)
	headerColor.Println(center(title, headerWidth))
	headerColor.Println(line)
}

// Step prints a numbered progress step.
func Step(n, total int, msg string) {
	stepColor.Printf("[%d/%d] %s\n", n, total, msg)
}

// Success prints a success message.
func Success(msg string) {
	successColor.Printf("✓ %s\n", msg)
}

// Info prints an informational message.
func Info(msg string) {
	infoColor.Printf("  %s\n", msg)
}

// Warning prints a warning message.
func Warning(msg string) {
	warningColor.Printf("⚠ %s\n", msg)
}

// Error prints an error message.
func Error(msg string) {
	errorColor.Printf("✗ %s\n", msg)
}

// BlueText returns the text colored blue.
func BlueText(text string) string {
	return stepColor.Sprint(text)
}

// YellowText returns the text colored yellow.
func YellowText(text string) string {
	return warningColor.Sprint(text)
}

// center left-pads text to sit in the middle of width. Trailing padding is
// omitted so terminal output has no invisible spaces.
func center(text string, width int) string {
	if len(text) >= width {
		return text
	}
	pad := (width - len(text)) / 2
	return fmt.Sprintf("%s%s", strings.Repeat(" ", pad), text)
}
