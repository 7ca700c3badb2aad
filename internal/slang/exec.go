package slang

import "github.com/xynqdb/xynq/internal/xio"

// NewDefaultEnv builds the standard Env every xynq process runs with:
// arithmetic, list, nop, and the storage-backed create/select/
// defstruct, plus the json payload handler registered both as the
// default (bare `![...]`) and under the "json" tag. Mirrors
// slang_env.cc's CreateSlangEnv.
func NewDefaultEnv(jsonHandler PayloadHandler) *Env {
	functions := make(map[string]Call)
	RegisterMathFunctions(functions)
	registerList(functions)
	registerNop(functions)
	registerCreate(functions)
	registerSelect(functions)
	registerDefstruct(functions)

	payloadHandlers := map[uint32]PayloadHandler{
		0: jsonHandler,
		MakePayloadHandlerToken("json"): jsonHandler,
	}

	return NewEnv(functions, payloadHandlers)
}

// Execute compiles a single S-expression from r and runs it, mirroring
// spec.md §4.N's `slang::execute(reader, serializer, context)` step of
// the endpoint REPL loop. Execute allocates nothing from an arena, and
// internal/endpoint's loop calls it repeatedly without any per-request
// purge.
func Execute(env *Env, r *xio.Reader, execCtx *ExecuteContext) error {
	compiler := NewCompiler(env)
	program, err := compiler.Build(r)
	if err != nil {
		return execCtx.Serializer.SerializeString(err.Error())
	}
	return program.Execute(execCtx)
}
