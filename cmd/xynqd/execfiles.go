package main

import (
	"io"
	"os"

	"github.com/xynqdb/xynq/internal/slang"
	"github.com/xynqdb/xynq/internal/task"
	"github.com/xynqdb/xynq/internal/wire"
	"github.com/xynqdb/xynq/internal/xio"
)

const execFileBufferSize = 512

// executeFiles mirrors execute_files.h's ExecuteFiles task: run every
// file in files through the Slang compiler/VM in order, on the
// current task's thread-local deps, discarding whatever each one's
// top-level expression would otherwise have serialized back to a
// client. At the first file that cannot be opened it logs the error and
// calls tc.Exit, which stops the whole task manager.
func executeFiles(tc *task.Context, env *slang.Env, files []string) {
	log := tc.Log()
	deps, _ := tc.UserData().(*slang.Deps)

	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			log.Error("cannot read exec file", "path", path, "err", err.Error())
			tc.Exit()
			return
		}

		log.Info("executing file", "path", path)
		runExecFile(tc, env, deps, f)
		_ = f.Close()
	}
}

// runExecFile mirrors ExecuteFiles::exec's body: exactly one top-level
// expression per file, consistent with slang::Execute itself only
// ever compiling and running a single expression from the reader it's
// given.
func runExecFile(tc *task.Context, env *slang.Env, deps *slang.Deps, f io.Reader) {
	r := xio.NewReader(make([]byte, execFileBufferSize), f)
	w := xio.NewWriter(make([]byte, execFileBufferSize), io.Discard)
	execCtx := &slang.ExecuteContext{Serializer: wire.NewSerializer(w), UserData: deps}

	if err := slang.Execute(env, r, execCtx); err != nil {
		tc.Log().Warn("exec file statement failed", "err", err.Error())
	}
}
