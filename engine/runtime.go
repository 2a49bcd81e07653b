// Package engine runs tokenized input through an ONNX Runtime session and
// hands back raw float32 score buffers.
package engine

import (
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// LibraryEnv overrides the shared library search.
const LibraryEnv = "ONNXRUNTIME_LIB"

var libraryCandidates = []string{
	"/usr/local/lib/libonnxruntime.dylib",
	"/opt/homebrew/lib/libonnxruntime.dylib",
	"/usr/lib/libonnxruntime.so",
	"/usr/local/lib/libonnxruntime.so",
	"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
	"/usr/lib/aarch64-linux-gnu/libonnxruntime.so",
}

// FindLibrary returns the first libonnxruntime found, checking $ONNXRUNTIME_LIB
// before the usual install locations. It returns "" when nothing exists.
func FindLibrary() string {
	if p := os.Getenv(LibraryEnv); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
		log.Warn("ONNX Runtime library from environment not found", "env", LibraryEnv, "path", p)
	}
	for _, c := range libraryCandidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// Initialize loads the shared library and creates the process-wide ORT
// environment. Calling it again after success is a no-op.
func Initialize(libraryPath string) error {
	if ort.IsInitialized() {
		return nil
	}
	if libraryPath == "" {
		libraryPath = FindLibrary()
	}
	if libraryPath == "" {
		return errors.Errorf("libonnxruntime not found, set %s", LibraryEnv)
	}
	ort.SetSharedLibraryPath(libraryPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrapf(err, "ORT init with %s", libraryPath)
	}
	log.Info("ONNX Runtime ready", "library", libraryPath, "version", ort.GetVersion())
	return nil
}

// Shutdown destroys the ORT environment. Sessions must be closed first.
func Shutdown() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}
