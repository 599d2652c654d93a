package main

import "github.com/kamilpajak/remedy/cmd/remedy"

func main() {
	remedy.Execute()
}
