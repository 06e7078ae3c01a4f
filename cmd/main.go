package main

import (
	"github.com/pthivierge/web-service-reader-for-pi-system/cmd/agent"
)

func main() {
	agent.Execute()
}
