package main

import "os"

func helper() {
	os.Exit(2)
}

func main() {
	defer helper()
	os.Exit(1) // want "запрещён прямой вызов os.Exit в main.main"
}
