package publish

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/alexflint/gblog/blogger"
)

// Prompt asks the user to pick a blog by number, repeating until the answer is valid
type Prompt struct {
	In  io.Reader
	Out io.Writer
}

// Choose implements Chooser
func (p *Prompt) Choose(blogs []*blogger.Blog) (int, error) {
	fmt.Fprintln(p.Out, "\nAvailable blogs:")
	for i, b := range blogs {
		fmt.Fprintf(p.Out, "%d. %s - %s (ID: %s)\n", i+1, b.Name, b.URL, b.ID)
	}

	rd := bufio.NewReader(p.In)
	for {
		fmt.Fprint(p.Out, "\nSelect blog number: ")
		line, err := rd.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("error reading selection: %w", err)
		}

		n, convErr := strconv.Atoi(strings.TrimSpace(line))
		if convErr == nil && n >= 1 && n <= len(blogs) {
			return n - 1, nil
		}
		if errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("%w: no selection was made", ErrAmbiguousBlog)
		}
		fmt.Fprintln(p.Out, "Invalid selection. Please try again.")
	}
}
