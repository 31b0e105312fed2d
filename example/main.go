package main

import (
	"flag"
	"io/ioutil"
	"log"
	"strings"
	"time"

	"github.com/daniellawrence/graphitesend"
	"github.com/daniellawrence/graphitesend/sender"
)

func main() {
	address := flag.String("endpoint", "localhost:2003", "carbon address")
	interval := flag.Duration("interval", time.Second, "send interval")
	flag.Parse()

	ep, err := sender.ParseEndpoint(*address, sender.DefaultTimeout)
	if err != nil {
		log.Fatal(err)
	}

	cfg := graphitesend.DefaultConfig()
	cfg.Host = ep.Host
	cfg.Port = ep.Port
	cfg.AutoReconnect = true
	cfg.Naming.Group = graphitesend.String("loadavg_")
	cfg.Naming.Suffix = "min"

	c, err := graphitesend.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	for {
		data, err := ioutil.ReadFile("/proc/loadavg")
		if err != nil {
			log.Fatal(err)
		}
		fields := strings.Fields(string(data))
		if len(fields) < 3 {
			log.Fatalf("unexpected /proc/loadavg content: %q", data)
		}
		ack, err := c.SendDict(map[string]interface{}{
			"1":  fields[0],
			"5":  fields[1],
			"15": fields[2],
		}, time.Time{})
		if err != nil {
			log.Print(err)
			if !c.AutoReconnect(sender.DefaultBackoff) {
				log.Fatal("giving up reconnecting")
			}
		} else {
			log.Print(ack)
		}
		time.Sleep(*interval)
	}
}
