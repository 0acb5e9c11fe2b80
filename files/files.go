package files

import (
	"log"
	"os"
	"path/filepath"
)

// ClearDir removes every regular file in dir. Missing directories are fine;
// subdirectories are left alone.
func ClearDir(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("clear %s: %v", dir, err)
		}
		return
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			log.Printf("remove %s: %v", e.Name(), err)
			continue
		}
		removed++
	}
	if removed > 0 {
		log.Printf("Cleared %d files from %s", removed, dir)
	}
}

func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}
