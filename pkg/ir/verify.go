package ir

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Verify checks the structural invariants of a lowered program and reports
// every violation it finds, not just the first:
//   - every block is closed by a terminator
//   - block names and global array names are unique
//   - jumps and branches target existing blocks
//   - every code label in a vtable or method map names a block
//   - every function's entry block exists
func Verify(p *Program) error {
	var result *multierror.Error

	blocks := make(map[string]bool, len(p.Blocks))
	for _, b := range p.Blocks {
		if blocks[b.Name] {
			result = multierror.Append(result, fmt.Errorf("duplicate block name %s", b.Name))
		}
		blocks[b.Name] = true
	}

	for _, b := range p.Blocks {
		if !b.Closed() {
			result = multierror.Append(result, fmt.Errorf("block %s has no terminator", b.Name))
			continue
		}
		for _, target := range b.Successors() {
			if !blocks[target] {
				result = multierror.Append(result, fmt.Errorf("block %s: %s targets unknown block %s", b.Name, b.Terminator, target))
			}
		}
	}

	globals := make(map[string]bool)
	for _, a := range p.Globals() {
		if globals[a.Name] {
			result = multierror.Append(result, fmt.Errorf("duplicate global array %s", a.Name))
		}
		globals[a.Name] = true
		for i, e := range a.Elems {
			if e.IsLabel() && !blocks[e.Label] {
				result = multierror.Append(result, fmt.Errorf("%s[%d]: label %s has no block", a.Name, i, e.Label))
			}
		}
	}

	for _, fn := range p.Functions {
		if !blocks[fn.Entry] {
			result = multierror.Append(result, fmt.Errorf("function %s: entry block %s does not exist", fn.Name, fn.Entry))
		}
	}

	return result.ErrorOrNil()
}
