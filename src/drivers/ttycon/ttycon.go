// Package ttycon is the console that user write(1, ...) calls end up on.
package ttycon

import (
	"fmt"
	"io"
	"os"
	"sync"

	colorable "github.com/mattn/go-colorable"
	isatty "github.com/mattn/go-isatty"
	tty "github.com/mattn/go-tty"
)

type Console struct {
	lock  sync.Mutex
	out   io.Writer
	tty   *tty.TTY
	lines int
}

// New writes to w.  Nothing is closed by Close.
func New(w io.Writer) *Console {
	return &Console{out: w}
}

// Open uses the controlling terminal when useTTY is set and one can be
// opened, otherwise standard output.  Output that is not a terminal is
// written as is.
func Open(useTTY bool) *Console {
	if useTTY {
		t, err := tty.Open()
		if err == nil {
			return &Console{out: t.Output(), tty: t}
		}
		fmt.Fprintf(os.Stderr, "ttycon: no terminal (%v), using stdout\n", err)
	}
	fd := os.Stdout.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return New(os.Stdout)
	}
	return New(colorable.NewColorableStdout())
}

func (c *Console) Println(text string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	fmt.Fprintln(c.out, text)
	c.lines++
}

// Lines is how many lines have been printed.
func (c *Console) Lines() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.lines
}

func (c *Console) Close() error {
	if c.tty == nil {
		return nil
	}
	return c.tty.Close()
}
