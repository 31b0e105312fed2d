package testserver

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Carbon runs a go-carbon daemon with the plaintext and pickle
// receivers enabled, writing whisper files under RootDir.
type Carbon struct {
	RootDir      string
	TCPListen    string
	PickleListen string
	Schemas      []SchemaConfig
	Aggregations []AggregationConfig

	cmd *exec.Cmd
}

// Start writes the config files and starts go-carbon, which must be
// in $PATH.
func (c *Carbon) Start() error {
	err := c.setup()
	if err != nil {
		return err
	}
	return c.startProcess()
}

func (c *Carbon) startProcess() error {
	const execFilename = "go-carbon"
	path, err := exec.LookPath(execFilename)
	if err != nil {
		return fmt.Errorf("executable %q not found in $PATH", execFilename)
	}
	c.cmd = exec.Command(path, "-config", c.CarbonConfigFilename())
	c.cmd.Stdout = os.Stdout
	c.cmd.Stderr = os.Stderr
	return c.cmd.Start()
}

func (c *Carbon) CarbonConfigFilename() string {
	return filepath.Join(c.RootDir, "go-carbon.conf")
}

func (c *Carbon) DataDirname() string {
	return filepath.Join(c.RootDir, "data")
}

func (c *Carbon) SchemasFilename() string {
	return filepath.Join(c.RootDir, "storage-schemas.conf")
}

func (c *Carbon) AggregationFilename() string {
	return filepath.Join(c.RootDir, "storage-aggregation.conf")
}

func (c *Carbon) logFilename() string {
	return filepath.Join(c.RootDir, "go-carbon.log")
}

// WhisperFilename returns the file go-carbon stores metric in.
func (c *Carbon) WhisperFilename(metric string) string {
	return filepath.Join(c.DataDirname(), strings.Replace(metric, ".", string(filepath.Separator), -1)+".wsp")
}

func (c *Carbon) setup() error {
	err := os.MkdirAll(c.DataDirname(), 0700)
	if err != nil {
		return err
	}
	err = c.writeCarbonConfigFile()
	if err != nil {
		return err
	}
	err = schemasConfig(c.Schemas).writeFile(c.SchemasFilename())
	if err != nil {
		return err
	}
	return aggregationsConfig(c.Aggregations).writeFile(c.AggregationFilename())
}

func (c *Carbon) Wait() error {
	return c.cmd.Wait()
}

func (c *Carbon) Kill() error {
	return c.cmd.Process.Kill()
}
