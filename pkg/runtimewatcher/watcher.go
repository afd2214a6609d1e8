package runtimewatcher

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/s3rj1k/go-fanotify/fanotify"
	"golang.org/x/sys/unix"

	"github.com/lockc-project/lockc/pkg/log"
)

// SubmitTimeout bounds how long the watcher waits for the control plane
// to acknowledge a command before giving up and allowing the execution
// anyway — a hung maintainer must never wedge the node's container
// runtime indefinitely.
const SubmitTimeout = 10 * time.Second

// Watcher holds a fanotify mark on every configured runtime binary path
// and, for every execution of one of them, holds the calling process
// until the Dispatcher has resolved and recorded its policy.
//
// The watch loop runs on a dedicated, locked OS thread: fanotify's
// permission events are held open until ResponseAllow/ResponseDeny is
// called on the same file descriptor, and GetEvent blocks in a plain
// syscall, which is incompatible with letting the Go scheduler migrate
// the goroutine to another thread mid-read.
type Watcher struct {
	notify     *fanotify.NotifyFD
	dispatcher *Dispatcher
	paths      []string

	stopCh chan struct{}
	doneCh chan struct{}
}

// New initializes fanotify and marks every path in paths with
// FAN_OPEN_EXEC_PERM. A path that cannot be marked (commonly because the
// runtime isn't installed at that location on this host) is logged and
// skipped rather than failing the whole watcher.
func New(dispatcher *Dispatcher, paths []string) (*Watcher, error) {
	notify, err := initFanotify()
	if err != nil {
		return nil, fmt.Errorf("runtimewatcher: fanotify init: %w", err)
	}

	marked := 0
	for _, path := range paths {
		if err := notify.Mark(unix.FAN_MARK_ADD, unix.FAN_OPEN_EXEC_PERM, unix.AT_FDCWD, path); err != nil {
			log.WithComponent("runtimewatcher").Debug().Err(err).Str("path", path).Msg("mark skipped")
			continue
		}
		marked++
	}
	if marked == 0 {
		notify.File.Close()
		return nil, fmt.Errorf("runtimewatcher: no runtime binary path could be marked (tried %d)", len(paths))
	}

	return &Watcher{
		notify:     notify,
		dispatcher: dispatcher,
		paths:      paths,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}, nil
}

func initFanotify() (*fanotify.NotifyFD, error) {
	fanotifyFlags := uint(unix.FAN_CLOEXEC | unix.FAN_CLASS_CONTENT | unix.FAN_UNLIMITED_QUEUE | unix.FAN_UNLIMITED_MARKS)
	openFlags := os.O_RDONLY | unix.O_LARGEFILE | unix.O_CLOEXEC
	return fanotify.Initialize(fanotifyFlags, openFlags)
}

// Start runs the watch loop on its own locked OS thread until Stop is
// called.
func (w *Watcher) Start() {
	go w.run()
}

// Stop closes the fanotify descriptor, which unblocks the pending
// GetEvent call, and waits for the watch loop to exit.
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.notify.File.Close()
	<-w.doneCh
}

func (w *Watcher) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			return
		default:
		}

		if err := w.iterate(); err != nil {
			select {
			case <-w.stopCh:
				return
			default:
				log.WithComponent("runtimewatcher").Error().Err(err).Msg("watch iteration failed")
			}
		}
	}
}

// iterate blocks for the next fanotify event, dispatches it, and always
// releases the held execution before returning: lockcd must never
// deadlock a container runtime even when policy resolution fails.
func (w *Watcher) iterate() error {
	data, err := w.notify.GetEvent()
	if err != nil {
		return fmt.Errorf("get event: %w", err)
	}
	if data == nil {
		return nil
	}
	defer data.Close()

	if !data.MatchMask(unix.FAN_OPEN_EXEC_PERM) {
		return fmt.Errorf("unexpected event mask on fd")
	}
	defer w.notify.ResponseAllow(data)

	pid := data.GetPID()

	comm, err := commFromPid(pid)
	if err != nil {
		// The process may have already exited between the permission
		// event firing and us reading /proc; nothing to do.
		return nil
	}
	cmdline, err := cmdlineFromPid(pid)
	if err != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), SubmitTimeout)
	defer cancel()

	if err := w.dispatcher.HandleExec(ctx, pid, comm, cmdline); err != nil {
		log.WithComponent("runtimewatcher").Error().Err(err).
			Int("pid", pid).Str("comm", comm).Msg("dispatch failed, allowing execution regardless")
	}

	return nil
}
