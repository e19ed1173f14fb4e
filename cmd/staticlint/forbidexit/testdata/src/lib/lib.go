package lib

import "os"

func Stop(code int) {
	os.Exit(code) // want "os.Exit в библиотечном пакете"
}

func Exit() {}

func Fine() {
	Exit()
}
