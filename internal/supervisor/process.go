// SPDX-License-Identifier: MPL-2.0

package supervisor

import (
	"fmt"
	"io"
	"os/exec"
)

// process is a started child whose output streams are exposed as pipes.
// The pipes are closed once the child has exited and exec has finished
// copying its output, which is what ends the multiplexer's readers.
type process struct {
	label  string
	cmd    *exec.Cmd
	stdout io.Reader
	stderr io.Reader

	done chan struct{}
	err  error
}

func startProcess(label string, cmd *exec.Cmd) (*process, error) {
	outR, outW := io.Pipe()
	errR, errW := io.Pipe()
	cmd.Stdout = outW
	cmd.Stderr = errW

	if err := cmd.Start(); err != nil {
		_ = outW.Close()
		_ = errW.Close()
		return nil, fmt.Errorf("failed to launch %s: %w", label, err)
	}

	p := &process{
		label:  label,
		cmd:    cmd,
		stdout: outR,
		stderr: errR,
		done:   make(chan struct{}),
	}
	go func() {
		p.err = cmd.Wait()
		_ = outW.Close()
		_ = errW.Close()
		close(p.done)
	}()
	return p, nil
}

// wait blocks until the child has exited. There is no timeout: the stop
// sequence is what makes children exit.
func (p *process) wait() error {
	<-p.done
	return p.err
}
