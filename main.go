package main

import "github.com/kedaikopi/kopi/cmd"

func main() {
	cmd.Execute()
}
