package main

import "os"

// ioOptimizations are platform-specific tweaks applied to a freshly
// opened manifest file or a piped standard input before it is handed
// to the parser. The slice is empty on platforms with nothing to do.
var ioOptimizations []func(os.FileInfo, *os.File) error

func applyIOOptimizations(f *os.File) {
	st, err := f.Stat()
	if err != nil {
		return
	}
	for _, opt := range ioOptimizations {
		_ = opt(st, f)
	}
}
