package bootstrap

import "os"

// instanceID names this process in logs: the platform dyno, an explicit
// worker id, then the hostname.
func instanceID(lookup func(string) string, hostname func() (string, error)) string {
	for _, key := range []string{"DYNO", "WORKER_ID"} {
		if id := lookup(key); id != "" {
			return id
		}
	}
	if host, err := hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}

func currentInstance() string {
	return instanceID(os.Getenv, os.Hostname)
}
