package main

import "github.com/andresmejia3/suri/cmd"

func main() {
	cmd.Execute()
}
