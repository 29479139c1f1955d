package main

import "github.com/er587/wedding-gallery-application/cmd"

func main() {
	cmd.Execute()
}
