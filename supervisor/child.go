package supervisor

import (
	"bufio"
	"io"
	"os"
	"os/exec"

	"go.uber.org/zap"
)

// child tracks a spawned extension subprocess. Grounded directly on
// ap_common/aputil.Child, trimmed of SetUID: Igloo's extensions run as the
// invoking user rather than root-dropping-to-nobody.
type child struct {
	cmd     *exec.Cmd
	process *os.Process

	pipes int
	done  chan bool
	log   *zap.Logger
}

// newChild prepares (but does not start) a subprocess for execpath.
func newChild(log *zap.Logger, execpath string, args ...string) *child {
	return &child{
		cmd: exec.Command(execpath, args...),
		log: log,
	}
}

// logPipe copies r line by line to c's logger until r closes, then signals
// done. Mirrors aputil.handlePipe.
func logPipe(c *child, r io.ReadCloser, stream string) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		c.log.Info(scanner.Text(), zap.String("stream", stream))
	}
	c.done <- true
}

// captureOutput hooks the child's stdout/stderr into its logger, the way
// aputil.Child.LogOutputTo does.
func (c *child) captureOutput() {
	c.pipes = 0
	c.done = make(chan bool)
	if stdout, err := c.cmd.StdoutPipe(); err == nil {
		c.pipes++
		go logPipe(c, stdout, "stdout")
	}
	if stderr, err := c.cmd.StderrPipe(); err == nil {
		c.pipes++
		go logPipe(c, stderr, "stderr")
	}
}

// start launches the subprocess.
func (c *child) start() error {
	c.captureOutput()
	if err := c.cmd.Start(); err != nil {
		return err
	}
	c.process = c.cmd.Process
	return nil
}

// wait blocks until the subprocess's stdout/stderr pipes have closed and the
// process itself has exited.
func (c *child) wait() error {
	for c.pipes > 0 {
		<-c.done
		c.pipes--
	}
	return c.cmd.Wait()
}

// kill sends SIGTERM (Signal(os.Interrupt) would be SIGINT on this
// platform's semantics; extensions are expected to exit promptly on either).
func (c *child) kill() {
	if c.process != nil {
		c.process.Kill()
	}
}
