// Package pkgutil loads Go packages and builds their SSA form for analysis.
package pkgutil

import (
	"fmt"
	"os"

	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// Should be equivalent to packages.LoadAllSyntax (which is deprecated)
const LoadMode = packages.NeedSyntax | packages.NeedTypesInfo | packages.NeedTypes |
	packages.NeedTypesSizes | packages.NeedImports | packages.NeedName |
	packages.NeedFiles | packages.NeedCompiledGoFiles | packages.NeedDeps

// SourceFile is the path under which LoadPackagesFromSource presents its
// source to the build tool.
const SourceFile = "/fake/testpackage/main.go"

// LoadPackagesFromSource loads a single file main package with the given
// source. Imports are resolved from GOROOT only.
func LoadPackagesFromSource(source string) ([]*packages.Package, error) {
	// We use the Overlay mechanism to allow the tool to load a non-existent file.
	config := &packages.Config{
		Mode:  LoadMode,
		Tests: false,
		Dir:   "",
		Env:   append(os.Environ(), "GO111MODULE=off", "GOPATH=/fake"),
		Overlay: map[string][]byte{
			SourceFile: []byte(source),
		},
	}

	return LoadPackagesWithConfig(config, SourceFile)
}

func LoadPackagesWithConfig(config *packages.Config, queries ...string) ([]*packages.Package, error) {
	pkgs, err := packages.Load(config, queries...)
	if err != nil {
		return nil, err
	} else if n := packages.PrintErrors(pkgs); n > 0 {
		return pkgs, fmt.Errorf("%d errors encountered while loading packages", n)
	}
	return pkgs, nil
}

// BuildSSA builds the SSA form of pkgs and their dependencies, instantiating
// generic functions. The returned packages correspond to pkgs.
func BuildSSA(pkgs []*packages.Package, mode ssa.BuilderMode) (*ssa.Program, []*ssa.Package) {
	prog, spkgs := ssautil.AllPackages(pkgs, mode|ssa.InstantiateGenerics)
	prog.Build()
	return prog, spkgs
}
