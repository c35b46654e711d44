package musicstate

import (
	"log"
	"os"
)

// Debugf logs only when the DEBUG environment variable is set.
func Debugf(msg string, args ...interface{}) {
	if os.Getenv("DEBUG") == "" {
		return
	}

	if len(args) > 0 {
		log.Printf(msg, args...)
	} else {
		log.Println(msg)
	}
}
