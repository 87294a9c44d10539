package main

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	cerrors "github.com/cockroachdb/errors"
)

type opKind int

const (
	opAlloc opKind = iota
	opFree
	opRealloc
)

var opKindMapping = map[string]opKind{
	"alloc":   opAlloc,
	"free":    opFree,
	"realloc": opRealloc,
}

// traceOp is one line of a trace. Allocations are named by id so a trace can refer to them
// without knowing the addresses the heap chose.
type traceOp struct {
	line  int
	kind  opKind
	id    string
	size  uintptr
	align uintptr
}

// parseTrace reads a trace with one operation per line:
//
//	alloc <id> <size> <align>
//	realloc <id> <size> <align>
//	free <id>
//
// Blank lines and lines starting with # are ignored.
func parseTrace(r io.Reader) ([]traceOp, error) {
	var ops []traceOp

	scanner := bufio.NewScanner(r)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		op, err := parseOp(strings.Fields(line))
		if err != nil {
			return nil, cerrors.Wrapf(err, "line %d", lineNumber)
		}
		op.line = lineNumber
		ops = append(ops, op)
	}

	if err := scanner.Err(); err != nil {
		return nil, cerrors.Wrap(err, "failed to read trace")
	}

	return ops, nil
}

func parseOp(fields []string) (traceOp, error) {
	kind, ok := opKindMapping[fields[0]]
	if !ok {
		return traceOp{}, cerrors.Newf("unknown operation %q", fields[0])
	}

	expected := 4
	if kind == opFree {
		expected = 2
	}
	if len(fields) != expected {
		return traceOp{}, cerrors.Newf("%s expects %d argument(s), got %d", fields[0], expected-1, len(fields)-1)
	}

	op := traceOp{kind: kind, id: fields[1]}
	if kind == opFree {
		return op, nil
	}

	size, err := strconv.ParseUint(fields[2], 0, 64)
	if err != nil {
		return traceOp{}, cerrors.Wrapf(err, "invalid size %q", fields[2])
	}
	align, err := strconv.ParseUint(fields[3], 0, 64)
	if err != nil {
		return traceOp{}, cerrors.Wrapf(err, "invalid alignment %q", fields[3])
	}

	op.size = uintptr(size)
	op.align = uintptr(align)
	return op, nil
}
