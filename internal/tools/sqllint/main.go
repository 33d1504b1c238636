// Command sqllint checks that every SQL string constant starts with a
// "--sql <uuid>" marker line and that no marker is reused, so each log line
// written by infra.SQLRunner points at exactly one statement.
package main

import (
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	sqlPattern        = regexp.MustCompile(`(?i)^\s*(--sql\b|select|insert|update|delete|with|create|alter|drop)\b`)
	uuidMarkerPattern = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

type violation struct {
	file    string
	name    string
	line    int
	message string
}

type statement struct {
	file   string
	name   string
	line   int
	marker string
}

func main() {
	flag.Parse()
	targets := flag.Args()
	if len(targets) == 0 {
		targets = []string{"internal/sqlinline"}
	}

	var stmts []statement
	for _, target := range targets {
		found, err := collect(target)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sqllint: %v\n", err)
			os.Exit(1)
		}
		stmts = append(stmts, found...)
	}

	violations := check(stmts)
	if len(violations) > 0 {
		fmt.Fprintln(os.Stderr, "sqllint: SQL audit marker violations")
		for _, v := range violations {
			fmt.Fprintf(os.Stderr, "  %s:%d %s (%s)\n", v.file, v.line, v.message, v.name)
		}
		os.Exit(1)
	}
	fmt.Printf("sqllint: %d statements ok\n", len(stmts))
}

func collect(target string) ([]statement, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if filepath.Ext(target) != ".go" {
			return nil, nil
		}
		return lintFile(target)
	}
	var stmts []statement
	err = filepath.WalkDir(target, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != target && (strings.HasPrefix(d.Name(), ".") || strings.HasPrefix(d.Name(), "_") || d.Name() == "vendor") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		found, err := lintFile(path)
		if err != nil {
			return err
		}
		stmts = append(stmts, found...)
		return nil
	})
	return stmts, err
}

// check reports statements with a missing or malformed marker and markers
// used by more than one statement.
func check(stmts []statement) []violation {
	var violations []violation
	seen := make(map[string]statement, len(stmts))
	for _, s := range stmts {
		if !uuidMarkerPattern.MatchString(s.marker) {
			violations = append(violations, violation{file: s.file, line: s.line, name: s.name, message: "missing or invalid --sql <uuid> marker"})
			continue
		}
		if prev, ok := seen[s.marker]; ok {
			violations = append(violations, violation{
				file:    s.file,
				line:    s.line,
				name:    s.name,
				message: fmt.Sprintf("marker already used by %s at %s:%d", prev.name, prev.file, prev.line),
			})
			continue
		}
		seen[s.marker] = s
	}
	return violations
}

func lintFile(path string) ([]statement, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
	if err != nil {
		return nil, err
	}
	var stmts []statement
	ast.Inspect(file, func(n ast.Node) bool {
		vs, ok := n.(*ast.ValueSpec)
		if !ok {
			return true
		}
		for i, value := range vs.Values {
			bl, ok := value.(*ast.BasicLit)
			if !ok || bl.Kind != token.STRING {
				continue
			}
			raw, err := unquote(bl.Value)
			if err != nil || !sqlPattern.MatchString(raw) {
				continue
			}
			name := ""
			if i < len(vs.Names) && vs.Names[i] != nil {
				name = vs.Names[i].Name
			}
			stmts = append(stmts, statement{
				file:   path,
				name:   name,
				line:   fset.Position(bl.Pos()).Line,
				marker: firstLine(raw),
			})
		}
		return true
	})
	return stmts, nil
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, "\n\r \t")
	if idx := strings.IndexAny(s, "\n\r"); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}

func unquote(v string) (string, error) {
	if len(v) == 0 {
		return v, nil
	}
	if v[0] == '`' {
		return v[1 : len(v)-1], nil
	}
	return strconv.Unquote(v)
}
