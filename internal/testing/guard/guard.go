package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("PLATFORM_TEST_MODE") == "" {
			_ = os.Setenv("PLATFORM_TEST_MODE", "1")
		}
	})
}
