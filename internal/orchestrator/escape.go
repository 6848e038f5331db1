package orchestrator

import "strings"

// escaper makes a string safe to interpolate inside a double-quoted econ
// argument: backslashes are doubled, double quotes backslash-escaped, and
// line breaks stripped so user input cannot inject a second command.
var escaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\r", "",
	"\n", "",
)

func escapeLine(s string) string {
	return escaper.Replace(s)
}
