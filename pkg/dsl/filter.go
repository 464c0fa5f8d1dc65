// Package dsl 提供基于 CEL (Common Expression Language) 的房源过滤表达式。
package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rushteam/estaterec/core"
)

// MaxCachedPrograms 是已编译表达式缓存的容量，超出后按 LRU 淘汰
const MaxCachedPrograms = 256

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once

	// programs 缓存已编译的表达式，表达式来自请求参数，必须有上限
	programs, _ = lru.New[string, cel.Program](MaxCachedPrograms)
)

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("listing", cel.MapType(cel.StringType, cel.DynType)),
		)
	})
	return celEnv, celEnvErr
}

// Filter 是编译后的房源过滤表达式，可并发使用。
//
// 表达式中的 listing 变量包含：
//   - id / description / region：字符串
//   - price / landsize / rooms：数值，缺失时不存在该 key
//   - attrs：目录中的其余列，map<string,string>
//
// 示例：
//   - `listing.region == "Northern Metropolitan"`
//   - `has(listing.price) && listing.price < 1000000.0`
//   - `has(listing.rooms) && listing.rooms >= 3.0 && listing.description.contains("lake")`
//
// 访问缺失的数值字段会导致求值失败，Match 将其视为不匹配；用 has() 先判断存在性。
type Filter struct {
	expr string
	prg  cel.Program
}

// Compile 编译表达式，语法错误或结果非布尔时返回 INVALID_INPUT。
// 最近使用的表达式会被缓存，不重复编译。
func Compile(expr string) (*Filter, error) {
	if expr == "" {
		return nil, core.InvalidInput(core.ModuleSearch, "empty filter expression")
	}
	if prg, ok := programs.Get(expr); ok {
		return &Filter{expr: expr, prg: prg}, nil
	}

	env, err := getCELEnv()
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleSearch, core.ErrorCodeInternalError, err, "init cel env")
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, core.InvalidInput(core.ModuleSearch, "compile filter: %v", issues.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, core.InvalidInput(core.ModuleSearch, "filter must return bool, got %s", ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, core.InvalidInput(core.ModuleSearch, "build filter program: %v", err)
	}
	programs.Add(expr, prg)
	return &Filter{expr: expr, prg: prg}, nil
}

// String 返回原始表达式
func (f *Filter) String() string { return f.expr }

// Match 判断房源是否满足表达式
func (f *Filter) Match(l core.Listing) bool {
	ok, err := f.Eval(l)
	return err == nil && ok
}

// Eval 对房源求值，返回求值错误（如访问缺失字段）
func (f *Filter) Eval(l core.Listing) (bool, error) {
	out, _, err := f.prg.Eval(map[string]any{"listing": listingInput(l)})
	if err != nil {
		return false, fmt.Errorf("eval filter %q on %s: %w", f.expr, l.ID, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("filter %q returned %T, want bool", f.expr, out.Value())
	}
	return result, nil
}

func listingInput(l core.Listing) map[string]any {
	attrs := make(map[string]string, len(l.Attrs))
	for k, v := range l.Attrs {
		attrs[k] = v
	}
	in := map[string]any{
		"id":          l.ID,
		"description": l.Description,
		"region":      l.Region,
		"attrs":       attrs,
	}
	if l.Price != nil {
		in["price"] = *l.Price
	}
	if l.Landsize != nil {
		in["landsize"] = *l.Landsize
	}
	if l.Rooms != nil {
		in["rooms"] = *l.Rooms
	}
	return in
}
