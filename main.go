package main

import "github.com/maastricht-university/interview-coach/cmd"

func main() {
	cmd.Execute()
}
