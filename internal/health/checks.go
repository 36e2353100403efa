package health

import (
	"context"
	"fmt"
	"os"
)

// DirWritable returns a [Checker] that creates and removes a probe file in
// dir.
func DirWritable(name, dir string) Checker {
	return Checker{
		Name: name,
		Check: func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := os.CreateTemp(dir, ".probe-*")
			if err != nil {
				return fmt.Errorf("dir %q not writable: %w", dir, err)
			}
			path := f.Name()
			f.Close()
			return os.Remove(path)
		},
	}
}
