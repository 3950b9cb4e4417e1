// The main package for the onboarder executable.
package main

import "github.com/roomsage/onboarder/cmd"

func main() {
	cmd.Execute()
}
