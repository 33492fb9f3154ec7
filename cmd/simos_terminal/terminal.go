package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/buildbarn/bb-storage/pkg/util"
	"github.com/simos-project/simos/pkg/filesystem/virtual"
	"github.com/simos-project/simos/pkg/shell"
)

// runTerminal reads commands from r line by line, executing them and
// writing their output to w. It returns when the input is exhausted,
// when the "exit" command is run, or when the context is canceled.
func runTerminal(ctx context.Context, commandInterface *shell.CommandInterface, fileStore virtual.FileStore, prompt string, r io.Reader, w io.Writer) error {
	lines := make(chan string)
	scanErrors := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErrors <- scanner.Err()
		close(lines)
	}()

	fmt.Fprintln(w, "Welcome to SimOS. Run \"help\" to list the available commands.")
	for {
		io.WriteString(w, strings.ReplaceAll(prompt, "%s", fileStore.GetCurrentDirectory()))
		select {
		case <-ctx.Done():
			fmt.Fprintln(w)
			return nil
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(w)
				if err := <-scanErrors; err != nil {
					return util.StatusWrap(err, "Failed to read from terminal")
				}
				return nil
			}
			result := commandInterface.Execute(ctx, line)
			if result.Output != "" {
				fmt.Fprintln(w, result.Output)
			}
			if result.Exit {
				return nil
			}
		}
	}
}
