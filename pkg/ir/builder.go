package ir

import "fmt"

// Builder accumulates basic blocks. Exactly one block is current at a time;
// statements go to the current block until a terminator closes it.
type Builder struct {
	blocks  []*BasicBlock
	current *BasicBlock
}

// NewBuilder creates an empty builder with no current block.
func NewBuilder() *Builder {
	return &Builder{blocks: []*BasicBlock{}}
}

// OpenBlock appends a new empty block and makes it current.
func (b *Builder) OpenBlock(name string) *BasicBlock {
	block := &BasicBlock{Name: name, Statements: []Statement{}}
	b.blocks = append(b.blocks, block)
	b.current = block
	return block
}

// Emit appends a statement to the current block. Emitting with no open
// current block is a programming error and panics.
func (b *Builder) Emit(s Statement) {
	b.mustBeOpen("emit " + s.String())
	b.current.Statements = append(b.current.Statements, s)
}

// Terminate sets the current block's terminator and returns the finished
// block. Terminating a closed block panics.
func (b *Builder) Terminate(ct ControlTransfer) *BasicBlock {
	b.mustBeOpen("terminate with " + ct.String())
	b.current.Terminator = ct
	return b.current
}

// Current returns the current block, which may already be closed.
func (b *Builder) Current() *BasicBlock {
	return b.current
}

// IsOpen reports whether there is a current block that accepts statements.
func (b *Builder) IsOpen() bool {
	return b.current != nil && !b.current.Closed()
}

// Blocks returns every block opened so far.
func (b *Builder) Blocks() []*BasicBlock {
	return b.blocks
}

func (b *Builder) mustBeOpen(action string) {
	if b.current == nil {
		panic(fmt.Sprintf("ir: %s: no current block", action))
	}
	if b.current.Closed() {
		panic(fmt.Sprintf("ir: %s: block %s is already closed", action, b.current.Name))
	}
}
