// The main package for the hashtag-scraper executable.
package main

import (
	"github.com/JakeFAU/tiktok-hashtag-scraper/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
