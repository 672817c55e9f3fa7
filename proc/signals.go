package proc

import (
	"os"
	"os/signal"
	"syscall"
)

// Signals routes asynchronous signals into the main loop. Handlers do no
// work themselves: the runtime writes into the channel (our self-pipe) and
// the interactive loop drains it between commands, which keeps trap commands
// and job-status updates out of signal context.
type Signals struct {
	ch chan os.Signal

	// Interrupted is set when SIGINT arrived since the last Drain; the
	// prompt loop checks it to abandon the current line.
	Interrupted bool
	// WinchFunc runs on SIGWINCH (update LINES/COLUMNS).
	WinchFunc func()
	// ChildFunc runs on SIGCHLD (reap background children).
	ChildFunc func()
}

// InstallInteractive installs the interactive-session handlers: SIGINT,
// SIGCHLD and SIGWINCH. SIGTTOU and SIGTTIN are ignored so the shell can
// manipulate the terminal from a background group without stopping.
func InstallInteractive() *Signals {
	s := &Signals{ch: make(chan os.Signal, 16)}
	signal.Notify(s.ch, syscall.SIGINT, syscall.SIGCHLD, syscall.SIGWINCH)
	signal.Ignore(syscall.SIGTTOU, syscall.SIGTTIN, syscall.SIGQUIT)
	return s
}

// InstallScript installs the non-interactive dispositions: the shell dies on
// SIGINT like any other process, children are still reaped.
func InstallScript() *Signals {
	s := &Signals{ch: make(chan os.Signal, 16)}
	signal.Notify(s.ch, syscall.SIGCHLD)
	return s
}

// Drain processes every pending signal without blocking.
func (s *Signals) Drain() {
	for {
		select {
		case sig := <-s.ch:
			s.handle(sig)
		default:
			return
		}
	}
}

func (s *Signals) handle(sig os.Signal) {
	switch sig {
	case syscall.SIGINT:
		s.Interrupted = true
	case syscall.SIGCHLD:
		if s.ChildFunc != nil {
			s.ChildFunc()
		}
	case syscall.SIGWINCH:
		if s.WinchFunc != nil {
			s.WinchFunc()
		}
	}
}

// Stop uninstalls the handlers.
func (s *Signals) Stop() {
	signal.Stop(s.ch)
}
