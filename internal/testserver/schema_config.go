package testserver

import "github.com/alyu/configparser"

// SchemaConfig is a section of storage-schemas.conf.
type SchemaConfig struct {
	Name       string
	Pattern    string
	Retentions string
}

type schemasConfig []SchemaConfig

func (c schemasConfig) writeFile(filename string) error {
	cfg := configparser.NewConfiguration()
	for _, s := range []SchemaConfig(c) {
		sec := cfg.NewSection(s.Name)
		sec.Add("pattern", s.Pattern)
		sec.Add("retentions", s.Retentions)
	}
	return configparser.Save(cfg, filename)
}
