package main

import (
	"log"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/daniellawrence/graphitesend"
)

func main() {
	cfg := graphitesend.DefaultConfig()
	cfg.Naming.Prefix = graphitesend.String(graphitesend.DefaultPrefix)

	enc := toml.NewEncoder(os.Stdout)
	enc.Indent = ""
	err := enc.Encode(cfg)
	if err != nil {
		log.Fatal(err)
	}
}
