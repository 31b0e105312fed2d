// Package graphitesend sends metrics to a graphite carbon daemon.
//
// Metric names are prefixed with a namespace built from a prefix, the
// system name and a group, then written over one persistent TCP
// connection using either carbon's plaintext protocol or its pickle
// protocol.
//
//	c, err := graphitesend.New(cfg)
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//	_, err = c.Send("cpu.user", 12.5, time.Time{})
package graphitesend
