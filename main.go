package main

import (
	"log"

	"github.com/jobpulse/notifier/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
