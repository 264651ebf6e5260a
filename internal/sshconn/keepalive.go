package sshconn

import (
	"sync/atomic"
	"time"

	"golang.org/x/crypto/ssh"
)

// runKeepalive sends periodic keepalive@openssh.com global requests and
// marks alive false once MaxMissed consecutive probes fail to get any
// reply (OpenSSH answers REQUEST_FAILURE for this request name, which is
// still a reply and therefore still proof of liveness). Generalized from a
// single do-or-die timeout into a missed-probe counter.
func runKeepalive(client *ssh.Client, cfg KeepaliveConfig, alive *atomic.Bool) {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	missed := 0
	for range ticker.C {
		if !alive.Load() {
			return
		}

		replied := make(chan error, 1)
		go func() {
			_, _, err := client.SendRequest("keepalive@openssh.com", true, nil)
			replied <- err
		}()

		select {
		case err := <-replied:
			if err != nil {
				missed++
			} else {
				missed = 0
			}
		case <-time.After(cfg.Interval):
			missed++
		}

		if missed >= cfg.MaxMissed {
			alive.Store(false)
			client.Close()
			return
		}
	}
}
