package main

import (
	"phredmean/internal/app"
	"phredmean/internal/appshell"
)

func main() {
	appshell.Main(app.RunContext)
}
