package player

import (
	"context"
	"errors"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"k8s.io/klog/v2"
)

// killTree terminates pid and every descendant, escalating to SIGKILL for
// anything still alive when ctx expires. exited, if non-nil, is closed once
// the root process has been reaped.
func killTree(ctx context.Context, pid int32, exited <-chan struct{}) error {
	root, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			return nil
		}
		return err
	}
	procs := append(descendants(ctx, root), root)

	for _, p := range procs {
		if err := p.TerminateWithContext(ctx); err != nil {
			klog.V(2).Infof("terminate pid %d: %v", p.Pid, err)
		}
	}

	tick := time.NewTicker(25 * time.Millisecond)
	defer tick.Stop()
	for {
		if !anyRunning(ctx, procs) {
			break
		}
		select {
		case <-ctx.Done():
			var errs []error
			for _, p := range procs {
				if running, _ := p.IsRunningWithContext(context.Background()); running {
					klog.Warningf("killing pid %d", p.Pid)
					if err := p.KillWithContext(context.Background()); err != nil {
						errs = append(errs, err)
					}
				}
			}
			return errors.Join(errs...)
		case <-exited:
			// The root is reaped; its pid may be reused, so only the
			// descendants are still worth watching.
			procs = procs[:len(procs)-1]
			exited = nil
		case <-tick.C:
		}
	}
	return nil
}

// descendants returns the children of p, depth first.
func descendants(ctx context.Context, p *process.Process) []*process.Process {
	children, err := p.ChildrenWithContext(ctx)
	if err != nil {
		return nil
	}
	var out []*process.Process
	for _, c := range children {
		out = append(out, descendants(ctx, c)...)
		out = append(out, c)
	}
	return out
}

func anyRunning(ctx context.Context, procs []*process.Process) bool {
	for _, p := range procs {
		if running, err := p.IsRunningWithContext(ctx); err == nil && running {
			return true
		}
	}
	return false
}
