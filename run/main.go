package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/daniellawrence/graphitesend/internal/testserver"
	"github.com/hnakamur/freeport"
)

func main() {
	rootDir := flag.String("root", "/tmp/graphitesend-carbon", "go-carbon root directory")
	flag.Parse()

	ports, err := freeport.GetFreePorts(2)
	if err != nil {
		log.Fatal(err)
	}

	s := testserver.Carbon{
		RootDir:      *rootDir,
		TCPListen:    fmt.Sprintf("127.0.0.1:%d", ports[0]),
		PickleListen: fmt.Sprintf("127.0.0.1:%d", ports[1]),
		Schemas: []testserver.SchemaConfig{
			{
				Name:       "carbon",
				Pattern:    "^carbon\\.",
				Retentions: "60:90d",
			},
			{
				Name:       "default",
				Pattern:    ".*",
				Retentions: "1s:5m,1m:1d",
			},
		},
		Aggregations: []testserver.AggregationConfig{
			{
				Name:              "default",
				Pattern:           ".*",
				XFilesFactor:      0.0,
				AggregationMethod: "average",
			},
		},
	}
	err = s.Start()
	if err != nil {
		log.Fatal(err)
	}
	err = testserver.WaitTCPPortConnectable(s.TCPListen, 50, 100*time.Millisecond)
	if err != nil {
		s.Kill()
		log.Fatal(err)
	}
	log.Printf("go-carbon started, TCPListen=%s, PickleListen=%s, DataDir=%s",
		s.TCPListen, s.PickleListen, s.DataDirname())

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		<-c
		log.Printf("stopping go-carbon")
		s.Kill()
	}()

	err = s.Wait()
	log.Printf("exiting, err=%v", err)
}
