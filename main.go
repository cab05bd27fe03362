package main

import "github.com/greenbudget/backend/cmd"

func main() {
	cmd.Execute()
}
