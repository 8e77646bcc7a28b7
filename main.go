package main

import "github.com/nirfast/mesh2image/cmd"

func main() {
	cmd.Execute()
}
