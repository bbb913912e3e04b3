// Package stdlib lists the top-level module names of the Python standard
// library.
//
// The names are read from the configured interpreter
// (sys.stdlib_module_names together with sys.builtin_module_names). When
// the interpreter is missing or too old to report them, an embedded list
// taken from CPython is used instead.
package stdlib

import (
	"bufio"
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pyllemi/pkg/cache"
)

//go:embed stdlib.txt
var embedded []byte

const script = `import sys
print("\n".join(sorted(set(sys.stdlib_module_names) | set(sys.builtin_module_names))))`

// RunFunc runs the interpreter with args and returns its stdout.
type RunFunc func(ctx context.Context, python string, args ...string) ([]byte, error)

func runPython(ctx context.Context, python string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, python, args...).Output()
}

// Lister resolves the standard library names of an interpreter.
type Lister struct {
	Python string      // interpreter (default "python3")
	Cache  cache.Cache // optional
	Keyer  cache.Keyer // optional, default cache.NewDefaultKeyer()
	Logger *log.Logger // optional
	Run    RunFunc     // optional, runs the interpreter
}

// Names returns the standard library names known to python, falling back
// to the embedded list.
func Names(ctx context.Context, python string) map[string]bool {
	return (&Lister{Python: python}).Names(ctx)
}

// Embedded returns the embedded list.
func Embedded() map[string]bool {
	return parse(embedded)
}

// Names implements the lookup. It never fails; errors are logged and the
// embedded list is returned.
func (l *Lister) Names(ctx context.Context) map[string]bool {
	python := l.Python
	if python == "" {
		python = "python3"
	}
	logger := l.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	keyer := l.Keyer
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	key := keyer.StdlibKey(python)

	if l.Cache != nil {
		if data, hit, err := l.Cache.Get(ctx, key); err == nil && hit {
			var names []string
			if json.Unmarshal(data, &names) == nil && len(names) > 0 {
				return toSet(names)
			}
		}
	}

	run := l.Run
	if run == nil {
		run = runPython
	}
	out, err := run(ctx, python, "-c", script)
	if err != nil {
		logger.Warn("using the embedded standard library list", "python", python, "err", err)
		return Embedded()
	}
	names := parse(out)
	if len(names) == 0 {
		logger.Warn("interpreter reported no standard library modules", "python", python)
		return Embedded()
	}

	if l.Cache != nil {
		list := make([]string, 0, len(names))
		for n := range names {
			list = append(list, n)
		}
		if data, err := json.Marshal(list); err == nil {
			if err := l.Cache.Set(ctx, key, data, cache.TTLStdlib); err != nil {
				logger.Debug("caching stdlib names", "err", fmt.Errorf("set %s: %w", key, err))
			}
		}
	}
	return names
}

func parse(data []byte) map[string]bool {
	names := make(map[string]bool)
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if n := strings.TrimSpace(sc.Text()); n != "" && !strings.HasPrefix(n, "#") {
			names[n] = true
		}
	}
	return names
}

func toSet(names []string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}
