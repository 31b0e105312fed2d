package testserver

import (
	"net"
	"os"
	"time"

	retry "github.com/rafaeljesus/retry-go"
)

// WaitTCPPortConnectable retries connecting to address until it
// succeeds or attempts are exhausted.
func WaitTCPPortConnectable(address string, attempts int, sleepTime time.Duration) error {
	return retry.Do(func() error {
		conn, err := net.DialTimeout("tcp", address, sleepTime)
		if err != nil {
			return err
		}
		conn.Close()
		return nil
	}, attempts, sleepTime)
}

// WaitFileExists retries until filename exists.
func WaitFileExists(filename string, attempts int, sleepTime time.Duration) error {
	return retry.Do(func() error {
		_, err := os.Stat(filename)
		return err
	}, attempts, sleepTime)
}
