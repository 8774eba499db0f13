package crash

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"time"

	"tg-broadcast/internal/logger"
)

// RecoverWithStack recovers a panic and logs it with its stack. It must be
// called directly by defer.
func RecoverWithStack(moduleName string) {
	if r := recover(); r != nil {
		reportPanic("PANIC", moduleName, r, debug.Stack())
	}
}

// RecoverWithStackAndExit is the main-goroutine variant: it logs and exits
// with a non-zero status so a supervisor restarts the process.
func RecoverWithStackAndExit(moduleName string) {
	if r := recover(); r != nil {
		reportPanic("FATAL PANIC", moduleName, r, debug.Stack())

		// let the rotating writer flush
		time.Sleep(1 * time.Second)
		os.Exit(1)
	}
}

// SafeGoroutine starts fn in a goroutine that cannot take the process down
func SafeGoroutine(name string, fn func()) {
	go func() {
		defer RecoverWithStack(fmt.Sprintf("goroutine-%s", name))
		fn()
	}()
}

// PanicError is returned by Guard when the guarded function panicked.
type PanicError struct {
	Name  string
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Name, e.Value)
}

// Guard runs fn and turns a panic into a *PanicError after logging it.
func Guard(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			reportPanic("PANIC", name, r, debug.Stack())
			err = &PanicError{Name: name, Value: r}
		}
	}()
	return fn()
}

func reportPanic(kind, moduleName string, r interface{}, stack []byte) {
	logger.Errorf("%s in %s: %v", kind, moduleName, r)
	logger.Errorf("Stack trace:\n%s", string(stack))

	// stderr as well, container logs may not include the file output
	fmt.Fprintf(os.Stderr, "[%s] %s - %s: %v\n", kind, time.Now().Format("2006-01-02 15:04:05"), moduleName, r)
	fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", string(stack))

	logRuntimeInfo()
}

func logRuntimeInfo() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	info := fmt.Sprintf(`
Runtime Information:
- Go version: %s
- Number of CPUs: %d
- Number of goroutines: %d
- Memory stats:
  - Heap allocated: %d KB
  - Heap in use: %d KB
  - Stack in use: %d KB
  - Num GC: %d
`,
		runtime.Version(),
		runtime.NumCPU(),
		runtime.NumGoroutine(),
		m.HeapAlloc/1024,
		m.HeapInuse/1024,
		m.StackInuse/1024,
		m.NumGC,
	)

	logger.Error(info)
}

// SetupCrashHandler turns unexpected memory faults into recoverable panics
func SetupCrashHandler() {
	debug.SetPanicOnFault(true)
}
