package main

import (
	"fmt"
	"os"

	"github.com/LimoEisbxr/periodix/server/timetableservice"
)

func main() {
	if err := timetableservice.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
