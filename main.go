package main

import "github.com/nikogura/cv-generator/cmd"

func main() {
	cmd.Execute()
}
